// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package presentation

import (
	"github.com/samber/oops"
)

// CodeHostPanic marks a host callback that panicked.
const CodeHostPanic = "HOST_PANIC"

// contain runs fn and converts a panic into an error.
func contain(operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = oops.Code(CodeHostPanic).
				With("operation", operation).
				Errorf("host panicked during %s: %v", operation, r)
		}
	}()
	return fn()
}
