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

package params

import "testing"

func TestDevSpecGenesis(t *testing.T) {
	spec := DevSpec()

	block, err := spec.GenesisBlock()
	if err != nil {
		t.Fatalf("decoding dev genesis: %v", err)
	}
	if block.NumberU64() != 0 {
		t.Fatalf("genesis number = %d, want 0", block.NumberU64())
	}
	// Decoding must be deterministic with respect to the block hash.
	again, err := spec.GenesisBlock()
	if err != nil {
		t.Fatalf("second decode: %v", err)
	}
	if block.Hash() != again.Hash() {
		t.Fatalf("genesis hash unstable: %x vs %x", block.Hash(), again.Hash())
	}
}

func TestGenesisBlockInvalidRLP(t *testing.T) {
	spec := &Spec{Name: "broken", Genesis: []byte{0xde, 0xad, 0xbe, 0xef}}
	if _, err := spec.GenesisBlock(); err == nil {
		t.Fatal("expected decode error for garbage genesis")
	}
}
