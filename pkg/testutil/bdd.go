package testutil

import "testing"

// Given, When and Then name the steps of a scenario test. Steps run in order as
// subtests and may share state through the enclosing test.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	if !t.Run("Given "+desc, fn) {
		t.FailNow()
	}
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	if !t.Run("When "+desc, fn) {
		t.FailNow()
	}
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
