package testutil

import "testing"

// Given, When and Then nest subtests so a failing scenario reads as a
// sentence in go test output, e.g.
// "TestX/Given_a_ledger_that_fails/When_listing/Then_500".

func Given(t *testing.T, precondition string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Given", precondition, fn)
}

func When(t *testing.T, action string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "When", action, fn)
}

func Then(t *testing.T, outcome string, fn func(t *testing.T)) bool {
	t.Helper()
	return step(t, "Then", outcome, fn)
}

func step(t *testing.T, keyword, desc string, fn func(t *testing.T)) bool {
	t.Helper()
	return t.Run(keyword+" "+desc, fn)
}
