package concurrency

import "testing"

// ============================================================================
// Compatibility Matrix Tests
// ============================================================================

func TestCompatible_FullMatrix(t *testing.T) {
	t.Parallel()

	// Rows are held modes, columns requested modes.
	want := map[LockMode]map[LockMode]bool{
		ModeNone: {ModeNone: true, ModeIS: true, ModeIX: true, ModeS: true, ModeX: true},
		ModeIS:   {ModeNone: true, ModeIS: true, ModeIX: true, ModeS: true, ModeX: false},
		ModeIX:   {ModeNone: true, ModeIS: true, ModeIX: true, ModeS: false, ModeX: false},
		ModeS:    {ModeNone: true, ModeIS: true, ModeIX: false, ModeS: true, ModeX: false},
		ModeX:    {ModeNone: true, ModeIS: false, ModeIX: false, ModeS: false, ModeX: false},
	}

	for held, row := range want {
		for requested, expected := range row {
			if got := Compatible(held, requested); got != expected {
				t.Errorf("Compatible(%s, %s) = %v, want %v", held, requested, got, expected)
			}
		}
	}
}

func TestCompatible_Symmetric(t *testing.T) {
	t.Parallel()

	modes := []LockMode{ModeNone, ModeIS, ModeIX, ModeS, ModeX}
	for _, a := range modes {
		for _, b := range modes {
			if Compatible(a, b) != Compatible(b, a) {
				t.Errorf("compatibility not symmetric for (%s, %s)", a, b)
			}
		}
	}
}

// ============================================================================
// Covers Tests
// ============================================================================

func TestCovers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		held      LockMode
		requested LockMode
		want      bool
	}{
		{ModeX, ModeX, true},
		{ModeX, ModeS, true},
		{ModeX, ModeIX, true},
		{ModeX, ModeIS, true},
		{ModeX, ModeNone, true},
		{ModeS, ModeS, true},
		{ModeS, ModeIS, true},
		{ModeS, ModeIX, false},
		{ModeS, ModeX, false},
		{ModeIX, ModeIX, true},
		{ModeIX, ModeIS, true},
		{ModeIX, ModeS, false},
		{ModeIX, ModeX, false},
		{ModeIS, ModeIS, true},
		{ModeIS, ModeIX, false},
		{ModeIS, ModeS, false},
		{ModeNone, ModeIS, false},
		{ModeNone, ModeNone, true},
	}

	for _, tt := range tests {
		if got := Covers(tt.held, tt.requested); got != tt.want {
			t.Errorf("Covers(%s, %s) = %v, want %v", tt.held, tt.requested, got, tt.want)
		}
	}
}

// ============================================================================
// Mode Property Tests
// ============================================================================

func TestIntentMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode LockMode
		want LockMode
	}{
		{ModeIS, ModeIS},
		{ModeS, ModeIS},
		{ModeIX, ModeIX},
		{ModeX, ModeIX},
	}

	for _, tt := range tests {
		if got := IntentMode(tt.mode); got != tt.want {
			t.Errorf("IntentMode(%s) = %s, want %s", tt.mode, got, tt.want)
		}
	}
}

func TestLockMode_Properties(t *testing.T) {
	t.Parallel()

	if !ModeIS.IsIntent() || !ModeIX.IsIntent() {
		t.Error("IS and IX must be intent modes")
	}
	if ModeS.IsIntent() || ModeX.IsIntent() || ModeNone.IsIntent() {
		t.Error("NONE, S and X must not be intent modes")
	}

	if !ModeIS.IsShared() || !ModeS.IsShared() {
		t.Error("IS and S are on the shared side")
	}
	if ModeIX.IsShared() || ModeX.IsShared() {
		t.Error("IX and X are on the exclusive side")
	}
}

func TestLockMode_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode LockMode
		want string
	}{
		{ModeNone, "NONE"},
		{ModeIS, "IS"},
		{ModeIX, "IX"},
		{ModeS, "S"},
		{ModeX, "X"},
		{LockMode(42), "INVALID"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("LockMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestLockMode_IsValid(t *testing.T) {
	t.Parallel()

	for m := ModeNone; m < lockModeCount; m++ {
		if !m.IsValid() {
			t.Errorf("mode %s should be valid", m)
		}
	}
	if LockMode(99).IsValid() {
		t.Error("out-of-range mode should be invalid")
	}
}
