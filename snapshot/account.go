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
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Code states carried per account in a state chunk. Contract code is supplied
// inline by exactly one chunk; every other chunk referencing the same code
// carries only its hash.
const (
	codeAbsent  = uint8(0) // account has no code
	codeInline  = uint8(1) // Code holds the contract bytecode
	codeHashRef = uint8(2) // Code holds the 32-byte hash of code supplied elsewhere
)

// storageEntry is one storage slot of a restored account: the hashed slot key
// and the RLP-encoded slot value.
type storageEntry struct {
	Key   common.Hash
	Value []byte
}

// accountData is the chunk representation of a single account.
type accountData struct {
	Nonce     uint64
	Balance   *big.Int
	CodeState uint8
	Code      []byte
	Storage   []storageEntry
}

// accountEntry pairs an account's address hash with its data. A state chunk
// is an RLP list of these entries.
type accountEntry struct {
	Hash    common.Hash
	Account accountData
}
