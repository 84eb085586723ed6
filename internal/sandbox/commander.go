// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sandbox

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/muster/internal/enlistment"
)

// Error codes returned by World operations.
const (
	CodeUnknownCommander = "UNKNOWN_COMMANDER"
	CodeInvalidCommander = "INVALID_COMMANDER"
	CodeJoinRefused      = "JOIN_REFUSED"
)

// commander is a lord in the sandbox world.
type commander struct {
	id       ulid.ULID
	name     string
	dead     bool
	captured bool
	party    *ulid.ULID // nil while captured or disbanded
}

func newCommander(name string) (*commander, error) {
	if name == "" {
		return nil, oops.Code(CodeInvalidCommander).Errorf("commander name cannot be empty")
	}
	party := ulid.Make()
	return &commander{id: ulid.Make(), name: name, party: &party}, nil
}

// entry is the directory view the lifecycle resolves against.
func (c *commander) entry() enlistment.Commander {
	e := enlistment.Commander{ID: c.id, Name: c.name, Dead: c.dead}
	if c.party != nil {
		party := *c.party
		e.PartyID = &party
	}
	return e
}

// usable mirrors the lifecycle's validity rule.
func (c *commander) usable() bool {
	return !c.dead && c.party != nil
}
