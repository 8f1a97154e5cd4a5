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
	"math/big"
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/golang/snappy"
	"github.com/holiman/uint256"
)

// compressChunk snappy-compresses a payload and returns its content hash and
// compressed bytes, the form chunks travel in.
func compressChunk(t *testing.T, payload []byte) (common.Hash, []byte) {
	t.Helper()
	compressed := snappy.Encode(nil, payload)
	return crypto.Keccak256Hash(compressed), compressed
}

// makeStateChunk encodes account entries into a compressed state chunk.
func makeStateChunk(t *testing.T, entries []accountEntry) (common.Hash, []byte) {
	t.Helper()
	payload, err := rlp.EncodeToBytes(entries)
	if err != nil {
		t.Fatalf("encoding state chunk: %v", err)
	}
	return compressChunk(t, payload)
}

// testAccount builds a plain account entry with a deterministic hash.
func testAccount(seed byte, nonce uint64, balance int64) accountEntry {
	return accountEntry{
		Hash: crypto.Keccak256Hash([]byte{seed}),
		Account: accountData{
			Nonce:     nonce,
			Balance:   big.NewInt(balance),
			CodeState: codeAbsent,
		},
	}
}

// expectedStateRoot independently computes the account-trie root the
// rebuilder must converge on for the given entries.
func expectedStateRoot(t *testing.T, entries []accountEntry) common.Hash {
	t.Helper()
	sorted := make([]accountEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Hash[:], sorted[j].Hash[:]) < 0
	})
	st := trie.NewStackTrie(nil)
	for i := range sorted {
		acct := &sorted[i].Account

		storageRoot := types.EmptyRootHash
		if len(acct.Storage) > 0 {
			slots := make([]storageEntry, len(acct.Storage))
			copy(slots, acct.Storage)
			sort.Slice(slots, func(i, j int) bool {
				return bytes.Compare(slots[i].Key[:], slots[j].Key[:]) < 0
			})
			sub := trie.NewStackTrie(nil)
			for j := range slots {
				if err := sub.Update(slots[j].Key[:], slots[j].Value); err != nil {
					t.Fatalf("storage insert: %v", err)
				}
			}
			storageRoot = sub.Hash()
		}
		codeHash := types.EmptyCodeHash
		switch acct.CodeState {
		case codeInline:
			codeHash = crypto.Keccak256Hash(acct.Code)
		case codeHashRef:
			codeHash = common.BytesToHash(acct.Code)
		}
		balance := acct.Balance
		if balance == nil {
			balance = new(big.Int)
		}
		leaf, err := rlp.EncodeToBytes(&types.StateAccount{
			Nonce:    acct.Nonce,
			Balance:  uint256.MustFromBig(balance),
			Root:     storageRoot,
			CodeHash: codeHash.Bytes(),
		})
		if err != nil {
			t.Fatalf("encoding account leaf: %v", err)
		}
		if err := st.Update(sorted[i].Hash[:], leaf); err != nil {
			t.Fatalf("account insert: %v", err)
		}
	}
	return st.Hash()
}

// makeChain builds count chained headers on top of the given parent block.
func makeChain(parentHash common.Hash, firstNumber uint64, count int) []blockEntry {
	blocks := make([]blockEntry, count)
	for i := 0; i < count; i++ {
		header := &types.Header{
			ParentHash:  parentHash,
			UncleHash:   types.EmptyUncleHash,
			Root:        types.EmptyRootHash,
			TxHash:      types.EmptyTxsHash,
			ReceiptHash: types.EmptyReceiptsHash,
			Number:      new(big.Int).SetUint64(firstNumber + uint64(i)),
			Difficulty:  big.NewInt(131072),
			GasLimit:    8_000_000,
			Time:        10 * (firstNumber + uint64(i)),
		}
		blocks[i] = blockEntry{Header: header, Body: &types.Body{}}
		parentHash = header.Hash()
	}
	return blocks
}

// makeBlockChunk encodes a run of blocks into a compressed block chunk.
func makeBlockChunk(t *testing.T, firstNumber uint64, parentHash common.Hash, blocks []blockEntry) (common.Hash, []byte) {
	t.Helper()
	payload, err := rlp.EncodeToBytes(&blockChunk{
		FirstNumber: firstNumber,
		ParentHash:  parentHash,
		Blocks:      blocks,
	})
	if err != nil {
		t.Fatalf("encoding block chunk: %v", err)
	}
	return compressChunk(t, payload)
}
