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
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// blockEntry is one block of a run: its header and body.
type blockEntry struct {
	Header *types.Header
	Body   *types.Body
}

// blockChunk is the decompressed payload of a block chunk: a run of
// consecutive blocks starting at FirstNumber, preceded on-chain by the block
// with hash ParentHash. Runs may be fed in any order; gluing happens after
// the last chunk.
type blockChunk struct {
	FirstNumber uint64
	ParentHash  common.Hash
	Blocks      []blockEntry
}
