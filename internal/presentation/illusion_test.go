// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package presentation_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/muster/internal/presentation"
	"github.com/holomush/muster/pkg/errutil"
)

type fakeParty struct {
	visible    bool
	following  *ulid.ULID
	follows    int
	releases   int
	panicOnSet bool
}

func (f *fakeParty) PartyVisible() bool { return f.visible }

func (f *fakeParty) SetPartyVisible(visible bool) {
	if f.panicOnSet {
		panic("party object unloaded")
	}
	f.visible = visible
}

func (f *fakeParty) FollowCamera(target ulid.ULID) {
	id := target
	f.following = &id
	f.follows++
}

func (f *fakeParty) ReleaseCamera() {
	f.following = nil
	f.releases++
}

type fakeSnapshot struct {
	wasVisible bool
	captures   int
}

func (s *fakeSnapshot) PartyWasVisible() bool { return s.wasVisible }

func (s *fakeSnapshot) CaptureVisibility(visible bool) {
	s.wasVisible = visible
	s.captures++
}

func TestIllusion_HideAndRestore(t *testing.T) {
	tests := []struct {
		name           string
		initialVisible bool
	}{
		{name: "visible party is hidden then shown again", initialVisible: true},
		{name: "already hidden party stays hidden after restore", initialVisible: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			party := &fakeParty{visible: tt.initialVisible}
			snap := &fakeSnapshot{wasVisible: true}
			illusion := presentation.NewIllusion(party, snap)
			commander := ulid.Make()

			require.NoError(t, illusion.Hide(commander))
			assert.False(t, party.visible)
			require.NotNil(t, party.following)
			assert.Equal(t, commander, *party.following)
			assert.Equal(t, tt.initialVisible, snap.wasVisible)
			assert.True(t, illusion.Suppressed())

			require.NoError(t, illusion.Restore())
			assert.Equal(t, tt.initialVisible, party.visible)
			assert.Nil(t, party.following)
			assert.True(t, snap.wasVisible, "snapshot resets to visible")
			assert.False(t, illusion.Suppressed())
		})
	}
}

func TestIllusion_HideTwiceKeepsFirstSnapshot(t *testing.T) {
	party := &fakeParty{visible: true}
	snap := &fakeSnapshot{wasVisible: true}
	illusion := presentation.NewIllusion(party, snap)

	require.NoError(t, illusion.Hide(ulid.Make()))
	require.NoError(t, illusion.Hide(ulid.Make()))

	assert.Equal(t, 1, snap.captures)
	assert.True(t, snap.wasVisible, "second hide must not capture the suppressed state")
}

func TestIllusion_RestoreIsIdempotent(t *testing.T) {
	party := &fakeParty{visible: true}
	snap := &fakeSnapshot{wasVisible: true}
	illusion := presentation.NewIllusion(party, snap)

	require.NoError(t, illusion.Hide(ulid.Make()))
	require.NoError(t, illusion.Restore())
	require.NoError(t, illusion.Restore())

	assert.True(t, party.visible)
	assert.Equal(t, 1, party.releases)
}

func TestIllusion_RestoreWithoutHideIsNoOp(t *testing.T) {
	party := &fakeParty{visible: false}
	snap := &fakeSnapshot{wasVisible: true}
	illusion := presentation.NewIllusion(party, snap)

	require.NoError(t, illusion.Restore())

	assert.False(t, party.visible, "restore never touches an unsuppressed party")
	assert.Zero(t, party.releases)
	assert.Zero(t, snap.captures)
}

func TestIllusion_MaintainReassertsWithoutRecapture(t *testing.T) {
	party := &fakeParty{visible: true}
	snap := &fakeSnapshot{wasVisible: true}
	illusion := presentation.NewIllusion(party, snap)
	commander := ulid.Make()

	require.NoError(t, illusion.Hide(commander))

	// Something on the host side made the party visible again.
	party.visible = true
	party.following = nil

	require.NoError(t, illusion.Maintain(commander))
	require.NoError(t, illusion.Maintain(commander))

	assert.False(t, party.visible)
	require.NotNil(t, party.following)
	assert.Equal(t, commander, *party.following)
	assert.Equal(t, 1, snap.captures)
	assert.True(t, snap.wasVisible)

	target, ok := illusion.Target()
	assert.True(t, ok)
	assert.Equal(t, commander, target)
}

func TestIllusion_MaintainHidesWhenNotSuppressed(t *testing.T) {
	party := &fakeParty{visible: true}
	snap := &fakeSnapshot{wasVisible: true}
	illusion := presentation.NewIllusion(party, snap)

	require.NoError(t, illusion.Maintain(ulid.Make()))

	assert.True(t, illusion.Suppressed())
	assert.False(t, party.visible)
	assert.Equal(t, 1, snap.captures)
}

func TestIllusion_ResumedSuppressionKeepsSavedSnapshot(t *testing.T) {
	// Loaded while enlisted: the host already shows the party hidden and
	// the save remembers it was visible before enlisting.
	party := &fakeParty{visible: false}
	snap := &fakeSnapshot{wasVisible: true}
	illusion := presentation.NewIllusion(party, snap, presentation.WithSuppressed(true))

	require.NoError(t, illusion.Maintain(ulid.Make()))
	assert.Zero(t, snap.captures)

	require.NoError(t, illusion.Restore())
	assert.True(t, party.visible)
}

func TestIllusion_HostPanicIsContained(t *testing.T) {
	party := &fakeParty{visible: true}
	snap := &fakeSnapshot{wasVisible: true}
	illusion := presentation.NewIllusion(party, snap)

	require.NoError(t, illusion.Hide(ulid.Make()))

	party.panicOnSet = true
	var err error
	assert.NotPanics(t, func() {
		err = illusion.Restore()
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, presentation.CodeHostPanic)
	errutil.AssertErrorContext(t, err, "operation", "restore")
	assert.True(t, illusion.Suppressed(), "failed restore stays retryable")

	party.panicOnSet = false
	require.NoError(t, illusion.Restore())
	assert.False(t, illusion.Suppressed())
	assert.True(t, party.visible)
}
