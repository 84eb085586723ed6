// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package service

// Error codes for coordinator construction and configuration.
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeMissingDependency = "MISSING_DEPENDENCY"
)

// Reasons recorded when service ends without the player asking.
const (
	ReasonCommanderInvalid = "commander_invalid"
	ReasonPlayerLeft       = "player_left"
)

// XP sources.
const (
	SourceBattle = "battle"
	SourceDrill  = "drill"
)
