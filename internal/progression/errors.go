// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package progression

// Error codes for progression table failures.
const (
	CodeTableInvalid            = "TABLE_INVALID"
	CodeTableVersionUnsupported = "TABLE_VERSION_UNSUPPORTED"
)
