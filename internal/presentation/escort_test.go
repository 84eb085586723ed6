// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package presentation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/muster/internal/presentation"
	"github.com/holomush/muster/pkg/errutil"
)

type mockArmyHost struct {
	mock.Mock
}

func (m *mockArmyHost) AttachEscort(ctx context.Context, commander ulid.ULID) error {
	args := m.Called(ctx, commander)
	return args.Error(0)
}

func (m *mockArmyHost) DetachEscort(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockArmyHost) RestoreIndependentAI(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockArmyHost) Escorting(ctx context.Context) (ulid.ULID, bool) {
	args := m.Called(ctx)
	return args.Get(0).(ulid.ULID), args.Bool(1)
}

func TestEscort_TryJoin(t *testing.T) {
	tests := []struct {
		name       string
		attachErr  error
		wantJoined bool
	}{
		{name: "attach succeeds", wantJoined: true},
		{name: "attach fails", attachErr: errors.New("commander party is full"), wantJoined: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			commander := ulid.Make()
			host := &mockArmyHost{}
			host.On("AttachEscort", ctx, commander).Return(tt.attachErr)
			host.On("Escorting", ctx).Return(commander, true).Maybe()

			escort := presentation.NewEscort(host)

			assert.Equal(t, tt.wantJoined, escort.TryJoin(ctx, commander))
			assert.Equal(t, tt.wantJoined, escort.Joined(ctx))
			host.AssertExpectations(t)
		})
	}
}

func TestEscort_TryJoinContainsPanic(t *testing.T) {
	ctx := context.Background()
	commander := ulid.Make()
	host := &mockArmyHost{}
	host.On("AttachEscort", ctx, commander).Run(func(mock.Arguments) {
		panic("army disbanded mid-call")
	})

	escort := presentation.NewEscort(host)

	assert.NotPanics(t, func() {
		assert.False(t, escort.TryJoin(ctx, commander))
	})
	assert.False(t, escort.Joined(ctx))
}

func TestEscort_JoinedTracksHost(t *testing.T) {
	commander := ulid.Make()

	tests := []struct {
		name       string
		setup      func(ctx context.Context, h *mockArmyHost)
		wantJoined bool
	}{
		{
			name: "still attached",
			setup: func(ctx context.Context, h *mockArmyHost) {
				h.On("Escorting", ctx).Return(commander, true)
			},
			wantJoined: true,
		},
		{
			name: "host dropped the escort",
			setup: func(ctx context.Context, h *mockArmyHost) {
				h.On("Escorting", ctx).Return(ulid.ULID{}, false)
			},
		},
		{
			name: "attached to someone else",
			setup: func(ctx context.Context, h *mockArmyHost) {
				h.On("Escorting", ctx).Return(ulid.Make(), true)
			},
		},
		{
			name: "query panics",
			setup: func(ctx context.Context, h *mockArmyHost) {
				h.On("Escorting", ctx).Run(func(mock.Arguments) {
					panic("army unloaded")
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			host := &mockArmyHost{}
			host.On("AttachEscort", ctx, commander).Return(nil)
			tt.setup(ctx, host)
			escort := presentation.NewEscort(host)
			require.True(t, escort.TryJoin(ctx, commander))

			var joined bool
			assert.NotPanics(t, func() {
				joined = escort.Joined(ctx)
			})

			assert.Equal(t, tt.wantJoined, joined)
		})
	}
}

func TestEscort_DroppedEscortRejoins(t *testing.T) {
	ctx := context.Background()
	commander := ulid.Make()
	host := &mockArmyHost{}
	host.On("AttachEscort", ctx, commander).Return(nil)
	host.On("Escorting", ctx).Return(ulid.ULID{}, false).Once()

	escort := presentation.NewEscort(host)
	require.True(t, escort.TryJoin(ctx, commander))
	require.False(t, escort.Joined(ctx))
	assert.False(t, escort.Joined(ctx), "a dropped escort stays not joined without asking again")
	host.AssertNumberOfCalls(t, "Escorting", 1)

	host.On("Escorting", ctx).Return(commander, true)
	require.True(t, escort.TryJoin(ctx, commander))
	assert.True(t, escort.Joined(ctx))
	host.AssertNumberOfCalls(t, "AttachEscort", 2)
}

func TestEscort_LeaveRunsBothSteps(t *testing.T) {
	ctx := context.Background()
	host := &mockArmyHost{}
	host.On("AttachEscort", ctx, mock.Anything).Return(nil)
	host.On("DetachEscort", ctx).Return(errors.New("not in an army"))
	host.On("RestoreIndependentAI", ctx).Return(nil)

	escort := presentation.NewEscort(host)
	require.True(t, escort.TryJoin(ctx, ulid.Make()))

	err := escort.Leave(ctx)

	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "operation", "leave escort")
	assert.False(t, escort.Joined(ctx))
	host.AssertCalled(t, "RestoreIndependentAI", ctx)
}

func TestEscort_LeaveWhenNeverJoined(t *testing.T) {
	ctx := context.Background()
	host := &mockArmyHost{}
	host.On("DetachEscort", ctx).Return(nil)
	host.On("RestoreIndependentAI", ctx).Return(nil)

	escort := presentation.NewEscort(host)

	require.NoError(t, escort.Leave(ctx))
	require.NoError(t, escort.Leave(ctx))
	host.AssertNumberOfCalls(t, "DetachEscort", 2)
}

func TestEscort_SafeDetachSwallowsFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(ctx context.Context, h *mockArmyHost)
		wantClean bool
	}{
		{
			name: "clean detach",
			setup: func(ctx context.Context, h *mockArmyHost) {
				h.On("DetachEscort", ctx).Return(nil)
				h.On("RestoreIndependentAI", ctx).Return(nil)
			},
			wantClean: true,
		},
		{
			name: "detach error",
			setup: func(ctx context.Context, h *mockArmyHost) {
				h.On("DetachEscort", ctx).Return(errors.New("gone"))
				h.On("RestoreIndependentAI", ctx).Return(nil)
			},
			wantClean: false,
		},
		{
			name: "ai restore panics",
			setup: func(ctx context.Context, h *mockArmyHost) {
				h.On("DetachEscort", ctx).Return(nil)
				h.On("RestoreIndependentAI", ctx).Run(func(mock.Arguments) {
					panic("party destroyed")
				})
			},
			wantClean: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			host := &mockArmyHost{}
			tt.setup(ctx, host)
			escort := presentation.NewEscort(host)

			var clean bool
			assert.NotPanics(t, func() {
				clean = escort.SafeDetach(ctx)
			})
			assert.Equal(t, tt.wantClean, clean)
			assert.False(t, escort.Joined(ctx))
		})
	}
}
