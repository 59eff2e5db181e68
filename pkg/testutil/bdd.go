package testutil

import "testing"

// Given, When, and Then run a scenario step as a named subtest so that the
// lifecycle acceptance tests read as a narrative in verbose output. They are
// plain t.Run wrappers, nothing more.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
