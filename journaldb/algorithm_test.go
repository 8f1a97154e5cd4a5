// Copyright 2016 The parity Authors
// This file is part of the parity library.
//
// The parity library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The parity library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the parity library. If not, see <http://www.gnu.org/licenses/>.

package journaldb

import "testing"

func TestParseAlgorithmRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{Archive, EarlyMerge, OverlayRecent, RefCounted} {
		parsed, err := ParseAlgorithm(algo.String())
		if err != nil {
			t.Fatalf("parsing %q: %v", algo.String(), err)
		}
		if parsed != algo {
			t.Fatalf("round trip of %v gave %v", algo, parsed)
		}
	}
}

func TestParseAlgorithmUnknown(t *testing.T) {
	algo, err := ParseAlgorithm("turbo")
	if err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
	if algo != Default {
		t.Fatalf("fallback = %v, want %v", algo, Default)
	}
}

func TestFlatLayout(t *testing.T) {
	tests := []struct {
		algo Algorithm
		flat bool
	}{
		{Archive, false},
		{EarlyMerge, false},
		{OverlayRecent, true},
		{RefCounted, true},
	}
	for _, tt := range tests {
		if got := tt.algo.Flat(); got != tt.flat {
			t.Errorf("%v.Flat() = %v, want %v", tt.algo, got, tt.flat)
		}
	}
}
