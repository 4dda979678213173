// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"
	"log/slog"
	"slices"
)

// PassState is the lifecycle state of a Pass.
type PassState uint8

// Pass states. A pass moves Constructed → Setup → Executing → After once
// per frame and returns to Setup on the next Before. A failed step leaves
// it Failed until the next Before.
const (
	PassConstructed PassState = iota
	PassSetup
	PassExecuting
	PassAfter
	PassFailed
	PassDestroyed
)

// String returns the state name.
func (s PassState) String() string {
	switch s {
	case PassConstructed:
		return "constructed"
	case PassSetup:
		return "setup"
	case PassExecuting:
		return "executing"
	case PassAfter:
		return "after"
	case PassFailed:
		return "failed"
	case PassDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("PassState(%d)", s)
	}
}

// Pass is one step of a frame. A pass is bound to one device and runs its
// phases in order: Before prepares targets and pipelines, Execute records
// and submits GPU work, After runs post-processing. Passes never retry.
type Pass interface {
	Name() string
	State() PassState
	Before() error
	Execute() error
	After() error
	Destroy()
}

// Degradable is implemented by passes whose failure only lowers output
// quality. A frame skips a failing degradable pass instead of aborting.
type Degradable interface {
	Degradable() bool
}

// lifecycle enforces the pass state machine.
type lifecycle struct {
	name  string
	state PassState
	log   *slog.Logger
}

func (l *lifecycle) Name() string     { return l.name }
func (l *lifecycle) State() PassState { return l.state }

// enter moves to state to if the current state is one of from.
func (l *lifecycle) enter(op string, to PassState, from ...PassState) error {
	if !slices.Contains(from, l.state) {
		return fmt.Errorf("%w: %s on pass %q in state %s", ErrPassState, op, l.name, l.state)
	}
	l.log.Debug("render: pass transition", "pass", l.name, "from", l.state.String(), "to", to.String())
	l.state = to
	return nil
}

func (l *lifecycle) before() error {
	return l.enter("Before", PassSetup, PassConstructed, PassAfter, PassFailed)
}

func (l *lifecycle) execute() error {
	return l.enter("Execute", PassExecuting, PassSetup)
}

func (l *lifecycle) after() error {
	return l.enter("After", PassAfter, PassExecuting)
}

// destroy reports whether the pass was not destroyed yet.
func (l *lifecycle) destroy() bool {
	if l.state == PassDestroyed {
		return false
	}
	l.state = PassDestroyed
	return true
}

// fail records err, if any, as a failed step.
func (l *lifecycle) fail(err error) error {
	if err != nil {
		l.state = PassFailed
	}
	return err
}
