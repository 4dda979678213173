// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"testing"

	"github.com/gogpu/gfx"
)

func newLifecycle() *lifecycle {
	return &lifecycle{name: "test", log: gfx.Logger()}
}

func TestLifecycleHappyPath(t *testing.T) {
	l := newLifecycle()
	for frame := range 3 {
		steps := []struct {
			call func() error
			want PassState
		}{
			{l.before, PassSetup},
			{l.execute, PassExecuting},
			{l.after, PassAfter},
		}
		for _, s := range steps {
			if err := s.call(); err != nil {
				t.Fatalf("frame %d: error = %v", frame, err)
			}
			if l.State() != s.want {
				t.Fatalf("frame %d: State() = %s, want %s", frame, l.State(), s.want)
			}
		}
	}
}

func TestLifecycleRejectsOutOfOrder(t *testing.T) {
	tests := []struct {
		name  string
		setup []func(*lifecycle) error
		call  func(*lifecycle) error
	}{
		{"execute before setup", nil, (*lifecycle).execute},
		{"after before execute", []func(*lifecycle) error{(*lifecycle).before}, (*lifecycle).after},
		{"before twice", []func(*lifecycle) error{(*lifecycle).before}, (*lifecycle).before},
		{"after twice", []func(*lifecycle) error{(*lifecycle).before, (*lifecycle).execute, (*lifecycle).after}, (*lifecycle).after},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLifecycle()
			for _, s := range tt.setup {
				if err := s(l); err != nil {
					t.Fatalf("setup error = %v", err)
				}
			}
			before := l.State()
			if err := tt.call(l); !errors.Is(err, ErrPassState) {
				t.Errorf("error = %v, want ErrPassState", err)
			}
			if l.State() != before {
				t.Errorf("State() = %s after rejected call, want %s", l.State(), before)
			}
		})
	}
}

func TestLifecycleFailureAndDestroy(t *testing.T) {
	l := newLifecycle()
	_ = l.before()
	_ = l.execute()
	if err := l.fail(errors.New("boom")); err == nil {
		t.Fatal("fail() returned nil")
	}
	if l.State() != PassFailed {
		t.Fatalf("State() = %s, want failed", l.State())
	}
	if err := l.after(); !errors.Is(err, ErrPassState) {
		t.Errorf("after() on failed pass error = %v, want ErrPassState", err)
	}
	if err := l.before(); err != nil {
		t.Errorf("before() after failure error = %v", err)
	}
	if l.fail(nil) != nil || l.State() != PassSetup {
		t.Error("fail(nil) changed the state")
	}

	if !l.destroy() {
		t.Error("destroy() = false on first call")
	}
	if l.destroy() {
		t.Error("destroy() = true on second call")
	}
	if err := l.before(); !errors.Is(err, ErrPassState) {
		t.Errorf("before() after destroy error = %v, want ErrPassState", err)
	}
}

func TestPassStateString(t *testing.T) {
	if PassExecuting.String() != "executing" {
		t.Errorf("String() = %q", PassExecuting.String())
	}
	if PassState(99).String() != "PassState(99)" {
		t.Errorf("String() = %q", PassState(99).String())
	}
}
