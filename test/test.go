// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package test contains small helper functions used by test files throughout
// the module. Centralising them here means test failure messages are
// consistent and test files don't need to reimplement the same comparisons.
package test

import "testing"

// ExpectEquality fails the test if got and want are not equal.
func ExpectEquality(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("expected equality: got %v, want %v", got, want)
	}
}

// ExpectInequality fails the test if got and want are equal.
func ExpectInequality(t *testing.T, got, notWant interface{}) {
	t.Helper()
	if got == notWant {
		t.Errorf("expected inequality: got %v, did not want %v", got, notWant)
	}
}

// Equate is a shorthand form of ExpectEquality for string comparisons.
func Equate(t *testing.T, got string, want string) {
	t.Helper()
	if got != want {
		t.Errorf("expected equality: got %q, want %q", got, want)
	}
}

// ExpectSuccess fails the test if err is not nil.
func ExpectSuccess(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
}

// ExpectFailure fails the test if err is nil.
func ExpectFailure(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Errorf("expected failure, got success")
	}
}

// ExpectedSuccess fails the test if ok is false.
func ExpectedSuccess(t *testing.T, ok bool) {
	t.Helper()
	if !ok {
		t.Errorf("expected success condition to be true")
	}
}

// ExpectedFailure fails the test if ok is true.
func ExpectedFailure(t *testing.T, ok bool) {
	t.Helper()
	if ok {
		t.Errorf("expected failure condition to be true")
	}
}
