// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package enlistment

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Error codes for lifecycle failures.
const (
	CodeNoCommander       = "NO_COMMANDER"
	CodeAlreadyEnlisted   = "ALREADY_ENLISTED"
	CodeInvalidCommander  = "INVALID_COMMANDER"
	CodeNotEnlisted       = "NOT_ENLISTED"
	CodeSnapshotInvalid   = "SNAPSHOT_INVALID"
	CodeMissingDependency = "MISSING_DEPENDENCY"
)

// ErrNoCommander is returned when enlisting without a commander.
func ErrNoCommander() error {
	return oops.Code(CodeNoCommander).Errorf("a commander is required to enlist")
}

// ErrAlreadyEnlisted is returned when enlisting while already serving.
func ErrAlreadyEnlisted(current ulid.ULID) error {
	return oops.Code(CodeAlreadyEnlisted).
		With("commander_id", current.String()).
		Errorf("already enlisted under %s", current)
}

// ErrInvalidCommander is returned when the commander is missing, dead, or partyless.
func ErrInvalidCommander(id ulid.ULID) error {
	return oops.Code(CodeInvalidCommander).
		With("commander_id", id.String()).
		Errorf("commander %s cannot take recruits", id)
}

// ErrNotEnlisted is returned by operations that require active service.
func ErrNotEnlisted() error {
	return oops.Code(CodeNotEnlisted).Errorf("not enlisted")
}
