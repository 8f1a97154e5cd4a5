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
	"bytes"
	"errors"
	"testing"

	"github.com/golang/snappy"
)

func TestDecompressInto(t *testing.T) {
	var scratch []byte

	payloads := [][]byte{
		bytes.Repeat([]byte("abcd"), 1000),
		[]byte("tiny"),
		bytes.Repeat([]byte{0}, 100_000),
	}
	for _, payload := range payloads {
		compressed := snappy.Encode(nil, payload)
		n, err := decompressInto(compressed, &scratch)
		if err != nil {
			t.Fatalf("decompressing %d bytes: %v", len(payload), err)
		}
		if n != len(payload) {
			t.Fatalf("length = %d, want %d", n, len(payload))
		}
		if !bytes.Equal(scratch[:n], payload) {
			t.Fatal("payload corrupted by round trip")
		}
	}
	// The scratch buffer is reused, not reallocated, once grown.
	grown := cap(scratch)
	if _, err := decompressInto(snappy.Encode(nil, []byte("small")), &scratch); err != nil {
		t.Fatalf("reusing scratch: %v", err)
	}
	if cap(scratch) != grown {
		t.Fatalf("scratch shrank from %d to %d", grown, cap(scratch))
	}
}

func TestDecompressIntoCorrupt(t *testing.T) {
	var scratch []byte

	var corrupt *CorruptChunkError
	if _, err := decompressInto([]byte{0xff, 0xff, 0xff, 0xff}, &scratch); !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptChunkError, got %v", err)
	}
}
