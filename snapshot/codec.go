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
	"github.com/golang/snappy"
)

// decompressInto decompresses a snappy block into the scratch buffer, growing
// it as needed, and returns the logical length of the decompressed bytes.
// The buffer is reused across chunks to amortize allocation.
func decompressInto(src []byte, scratch *[]byte) (int, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return 0, &CorruptChunkError{Err: err}
	}
	if cap(*scratch) < n {
		*scratch = make([]byte, n)
	}
	*scratch = (*scratch)[:n]
	if _, err := snappy.Decode(*scratch, src); err != nil {
		return 0, &CorruptChunkError{Err: err}
	}
	return n, nil
}
