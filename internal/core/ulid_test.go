// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/muster/pkg/errutil"
)

func TestNewULID(t *testing.T) {
	id1 := NewULID()
	id2 := NewULID()

	assert.NotEqual(t, id1, id2)
	assert.Less(t, id1.String(), id2.String(), "monotonic entropy orders ULIDs from the same millisecond")
}

func TestParseULID(t *testing.T) {
	original := NewULID()
	parsed, err := ParseULID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestParseULID_Invalid(t *testing.T) {
	_, err := ParseULID("invalid")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeInvalidID)
	errutil.AssertErrorContext(t, err, "id", "invalid")
}
