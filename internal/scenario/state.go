// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package scenario

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

type library struct {
	name string
	fn   lua.LGFunction
}

// Scripts get base, table, string and math. os, io, debug and package are
// never opened.
func safeLibraries() []library {
	return []library{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// Base functions that reach the filesystem or compile arbitrary chunks.
var blockedBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load", "require"}

// newState creates a Lua state with only the safe libraries loaded. The
// state honours ctx cancellation while running.
func newState(ctx context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range safeLibraries() {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.Code(CodeScenarioFailed).With("library", lib.name).Wrapf(err, "open lua library")
		}
	}
	for _, fn := range blockedBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}

	L.SetContext(ctx)
	return L, nil
}
