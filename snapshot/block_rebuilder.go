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
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/whatisgravity/parity/consensus"
)

// chunkRun records one fed block chunk: a verified run of consecutive blocks
// already written to the staging database, awaiting gluing.
type chunkRun struct {
	first      uint64
	last       uint64
	parentHash common.Hash
	hashes     []common.Hash
}

// BlockRebuilder consumes decompressed block chunks, verifies their seals and
// writes headers and bodies into the staging chain. Chunks arrive in any
// order; GlueChunks links them into a single canonical chain afterwards.
type BlockRebuilder struct {
	db         ethdb.Database
	genesis    *types.Block
	bestNumber uint64
	bestHash   common.Hash // manifest hash of the block at bestNumber
	engineData []byte      // engine-specific manifest bytes, relayed unchanged
	runs       []chunkRun
	fed        uint64 // total blocks written, for logging
}

// NewBlockRebuilder binds a rebuilder to a fresh staging chain, seeding it
// with the genesis block. bestNumber and bestHash identify the snapshot's
// highest block; a zero bestHash skips the head-hash verification.
func NewBlockRebuilder(db ethdb.Database, genesis *types.Block, bestNumber uint64, bestHash common.Hash, engineData []byte) (*BlockRebuilder, error) {
	batch := db.NewBatch()
	rawdb.WriteBlock(batch, genesis)
	rawdb.WriteCanonicalHash(batch, genesis.Hash(), 0)
	if err := batch.Write(); err != nil {
		return nil, err
	}
	return &BlockRebuilder{db: db, genesis: genesis, bestNumber: bestNumber, bestHash: bestHash, engineData: engineData}, nil
}

// Feed decodes a run of consecutive blocks, verifies each block's seal and
// body against its header, and persists the run.
func (b *BlockRebuilder) Feed(data []byte, engine consensus.Engine) error {
	var chunk blockChunk
	if err := rlp.DecodeBytes(data, &chunk); err != nil {
		return &CorruptChunkError{Err: err}
	}
	if len(chunk.Blocks) == 0 {
		return &CorruptChunkError{Err: fmt.Errorf("empty block run")}
	}
	last := chunk.FirstNumber + uint64(len(chunk.Blocks)) - 1
	if chunk.FirstNumber == 0 || last > b.bestNumber {
		return &CorruptChunkError{Err: fmt.Errorf("block run [%d..%d] outside snapshot range", chunk.FirstNumber, last)}
	}

	var (
		batch  = b.db.NewBatch()
		parent = chunk.ParentHash
		hashes = make([]common.Hash, 0, len(chunk.Blocks))
	)
	for i := range chunk.Blocks {
		var (
			header = chunk.Blocks[i].Header
			body   = chunk.Blocks[i].Body
			number = chunk.FirstNumber + uint64(i)
		)
		if header == nil || body == nil {
			return &CorruptChunkError{Err: fmt.Errorf("block %d: missing header or body", number)}
		}
		if header.Number == nil || header.Number.Uint64() != number {
			return &CorruptChunkError{Err: fmt.Errorf("block %d: header number mismatch", number)}
		}
		if header.ParentHash != parent {
			return &CorruptChunkError{Err: fmt.Errorf("block %d: broken parent link within run", number)}
		}
		if hash := types.DeriveSha(types.Transactions(body.Transactions), trie.NewStackTrie(nil)); hash != header.TxHash {
			return &CorruptChunkError{Err: fmt.Errorf("block %d: transaction root mismatch", number)}
		}
		if hash := types.CalcUncleHash(body.Uncles); hash != header.UncleHash {
			return &CorruptChunkError{Err: fmt.Errorf("block %d: uncle root mismatch", number)}
		}
		if err := engine.VerifyBlockSeal(header); err != nil {
			return fmt.Errorf("block %d: %w", number, err)
		}
		hash := header.Hash()
		rawdb.WriteHeader(batch, header)
		rawdb.WriteBody(batch, hash, number, body)
		hashes = append(hashes, hash)
		parent = hash
	}
	if err := batch.Write(); err != nil {
		return err
	}
	b.runs = append(b.runs, chunkRun{
		first:      chunk.FirstNumber,
		last:       last,
		parentHash: chunk.ParentHash,
		hashes:     hashes,
	})
	b.fed += uint64(len(chunk.Blocks))
	log.Trace("Applied block chunk", "first", chunk.FirstNumber, "last", last, "total", b.fed)
	return nil
}

// GlueChunks links the fed runs into a single canonical chain. The lowest run
// abuts either the genesis block or the snapshot's pivot boundary; every
// other run must extend the one below it, and the glued head must be the
// block the manifest promises.
func (b *BlockRebuilder) GlueChunks() error {
	if len(b.runs) == 0 {
		return b.writeHead(b.genesis.Hash())
	}
	runs := b.runs
	sort.Slice(runs, func(i, j int) bool { return runs[i].first < runs[j].first })

	for i := 1; i < len(runs); i++ {
		prev, cur := &runs[i-1], &runs[i]
		if cur.first != prev.last+1 || cur.parentHash != prev.hashes[len(prev.hashes)-1] {
			return &DiscontinuityError{Number: prev.last}
		}
	}
	lowest, highest := &runs[0], &runs[len(runs)-1]
	if highest.last != b.bestNumber {
		return &DiscontinuityError{Number: highest.last}
	}
	if lowest.first == 1 && lowest.parentHash != b.genesis.Hash() {
		return &DiscontinuityError{Number: 0}
	}
	if head := highest.hashes[len(highest.hashes)-1]; b.bestHash != (common.Hash{}) && head != b.bestHash {
		return fmt.Errorf("restored chain head %x does not match manifest head %x", head, b.bestHash)
	}

	batch := b.db.NewBatch()
	for i := range runs {
		for j, hash := range runs[i].hashes {
			rawdb.WriteCanonicalHash(batch, hash, runs[i].first+uint64(j))
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	head := highest.hashes[len(highest.hashes)-1]
	log.Debug("Glued block chunks", "runs", len(runs), "head", head, "number", highest.last)
	return b.writeHead(head)
}

// writeHead marks the canonical chain head in the staging database.
func (b *BlockRebuilder) writeHead(hash common.Hash) error {
	batch := b.db.NewBatch()
	rawdb.WriteHeadHeaderHash(batch, hash)
	rawdb.WriteHeadBlockHash(batch, hash)
	rawdb.WriteHeadFastBlockHash(batch, hash)
	return batch.Write()
}
