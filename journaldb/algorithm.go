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

// Package journaldb names the state-journal strategies a node database can
// run under. The snapshot restoration code uses the selected algorithm to
// decide the staging database layout; the algorithms themselves are applied
// by the node's state storage at runtime.
package journaldb

import "fmt"

// Algorithm is a state-journal strategy.
type Algorithm uint8

const (
	// Archive keeps every historical trie node; nothing is ever pruned.
	Archive Algorithm = iota

	// EarlyMerge journals deletions and applies them as soon as possible.
	EarlyMerge

	// OverlayRecent keeps a journal overlay of recent eras over a flat
	// snapshot layout. The default, colloquially "fast".
	OverlayRecent

	// RefCounted keeps reference counts on shared nodes over the flat
	// layout.
	RefCounted
)

// Default is the algorithm used when none is configured.
const Default = OverlayRecent

// ParseAlgorithm resolves a user-supplied name to an algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "archive":
		return Archive, nil
	case "light":
		return EarlyMerge, nil
	case "fast":
		return OverlayRecent, nil
	case "basic":
		return RefCounted, nil
	default:
		return Default, fmt.Errorf("unknown pruning algorithm %q", name)
	}
}

// String implements fmt.Stringer with the user-facing names accepted by
// ParseAlgorithm.
func (a Algorithm) String() string {
	switch a {
	case Archive:
		return "archive"
	case EarlyMerge:
		return "light"
	case OverlayRecent:
		return "fast"
	case RefCounted:
		return "basic"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// Flat reports whether the algorithm maintains the flat account/storage
// layout next to the trie nodes. Restoration pre-populates the flat entries
// for these algorithms so the journal overlay has a base to index.
func (a Algorithm) Flat() bool {
	return a == OverlayRecent || a == RefCounted
}
