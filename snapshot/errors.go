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

package snapshot

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// errHashMismatch reports a chunk whose content hash does not match the hash
// it was fed under.
var errHashMismatch = errors.New("content hash mismatch")

// CorruptChunkError is returned when a chunk fails snappy decoding, content
// hashing or payload decoding.
type CorruptChunkError struct {
	Hash common.Hash
	Err  error
}

func (e *CorruptChunkError) Error() string {
	if e.Hash == (common.Hash{}) {
		return fmt.Sprintf("corrupt chunk: %v", e.Err)
	}
	return fmt.Sprintf("corrupt chunk %x: %v", e.Hash, e.Err)
}

func (e *CorruptChunkError) Unwrap() error { return e.Err }

// WrongStateRootError is returned at finalization when the rebuilt account
// trie does not hash to the root promised by the manifest.
type WrongStateRootError struct {
	Expected common.Hash
	Got      common.Hash
}

func (e *WrongStateRootError) Error() string {
	return fmt.Sprintf("wrong state root: expected %x, got %x", e.Expected, e.Got)
}

// MissingCodeError is returned at finalization when contract code referenced
// by a restored account was never supplied by any chunk.
type MissingCodeError struct {
	Missing []common.Hash
}

func (e *MissingCodeError) Error() string {
	return fmt.Sprintf("missing contract code for %d hashes", len(e.Missing))
}

// DiscontinuityError is returned when the fed block runs cannot be linked
// into a continuous chain. Number is the highest block before the gap.
type DiscontinuityError struct {
	Number uint64
}

func (e *DiscontinuityError) Error() string {
	return fmt.Sprintf("chain discontinuity after block %d", e.Number)
}
