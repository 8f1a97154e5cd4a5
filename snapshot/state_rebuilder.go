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
	"fmt"
	"math/big"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"

	"github.com/whatisgravity/parity/journaldb"
)

// StateRebuilder consumes decompressed state chunks and assembles the account
// trie in the staging database. Trie nodes are committed incrementally per
// chunk; the final root is available once every chunk has been fed.
type StateRebuilder struct {
	db      ethdb.Database
	triedb  *triedb.Database
	tr      *trie.Trie
	root    common.Hash
	pruning journaldb.Algorithm

	// knownCode holds the hashes of code blobs supplied inline by some
	// chunk; missingCode the hashes referenced but not yet supplied.
	knownCode   mapset.Set[common.Hash]
	missingCode mapset.Set[common.Hash]

	accounts uint64 // total accounts fed, for logging
}

// NewStateRebuilder creates a rebuilder writing into the given staging
// database under the chosen pruning algorithm's layout.
func NewStateRebuilder(db ethdb.Database, pruning journaldb.Algorithm) *StateRebuilder {
	tdb := triedb.NewDatabase(db, nil)
	return &StateRebuilder{
		db:          db,
		triedb:      tdb,
		tr:          trie.NewEmpty(tdb),
		root:        types.EmptyRootHash,
		pruning:     pruning,
		knownCode:   mapset.NewThreadUnsafeSet[common.Hash](),
		missingCode: mapset.NewThreadUnsafeSet[common.Hash](),
	}
}

// Feed parses a decompressed state chunk and applies its accounts to the
// staging database: code blobs are persisted, flat account and storage
// entries are written when the pruning algorithm keeps the flat layout, the
// account leaves inserted into the trie and the resulting nodes committed.
// Storage tries are only hashed to derive each account's storage root; their
// nodes are not written.
func (s *StateRebuilder) Feed(data []byte) error {
	var entries []accountEntry
	if err := rlp.DecodeBytes(data, &entries); err != nil {
		return &CorruptChunkError{Err: err}
	}
	batch := s.db.NewBatch()
	for i := range entries {
		if err := s.applyAccount(batch, &entries[i]); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	// Commit the trie so the chunk's nodes land in the staging database and
	// memory stays bounded across large snapshots.
	root, nodes, err := s.tr.Commit(false)
	if err != nil {
		return err
	}
	if nodes != nil {
		if err := s.triedb.Update(root, s.root, 0, trienode.NewWithNodeSet(nodes), nil); err != nil {
			return err
		}
	}
	s.root = root
	if s.tr, err = trie.New(trie.StateTrieID(root), s.triedb); err != nil {
		return err
	}
	s.accounts += uint64(len(entries))
	log.Trace("Applied state chunk", "accounts", len(entries), "total", s.accounts, "root", root)
	return nil
}

// applyAccount persists one account's code and, for flat-layout algorithms,
// its flat account and storage entries, and inserts its leaf into the account
// trie. The storage slots contribute only their root to the leaf.
func (s *StateRebuilder) applyAccount(batch ethdb.Batch, entry *accountEntry) error {
	acct := &entry.Account

	storageRoot := types.EmptyRootHash
	if len(acct.Storage) > 0 {
		slots := make([]storageEntry, len(acct.Storage))
		copy(slots, acct.Storage)
		sort.Slice(slots, func(i, j int) bool {
			return bytes.Compare(slots[i].Key[:], slots[j].Key[:]) < 0
		})
		st := trie.NewStackTrie(nil)
		for i := range slots {
			if err := st.Update(slots[i].Key[:], slots[i].Value); err != nil {
				return &CorruptChunkError{Err: fmt.Errorf("storage slot %x: %w", slots[i].Key, err)}
			}
			if s.pruning.Flat() {
				rawdb.WriteStorageSnapshot(batch, entry.Hash, slots[i].Key, slots[i].Value)
			}
		}
		storageRoot = st.Hash()
	}

	codeHash := types.EmptyCodeHash
	switch acct.CodeState {
	case codeAbsent:
		if len(acct.Code) != 0 {
			return &CorruptChunkError{Err: fmt.Errorf("account %x: code bytes on codeless account", entry.Hash)}
		}
	case codeInline:
		codeHash = crypto.Keccak256Hash(acct.Code)
		rawdb.WriteCode(batch, codeHash, acct.Code)
		s.knownCode.Add(codeHash)
		s.missingCode.Remove(codeHash)
	case codeHashRef:
		if len(acct.Code) != common.HashLength {
			return &CorruptChunkError{Err: fmt.Errorf("account %x: malformed code hash reference", entry.Hash)}
		}
		codeHash = common.BytesToHash(acct.Code)
		if !s.knownCode.Contains(codeHash) {
			s.missingCode.Add(codeHash)
		}
	default:
		return &CorruptChunkError{Err: fmt.Errorf("account %x: unknown code state %d", entry.Hash, acct.CodeState)}
	}

	balance := acct.Balance
	if balance == nil {
		balance = new(big.Int)
	}
	account := types.StateAccount{
		Nonce:    acct.Nonce,
		Balance:  uint256.MustFromBig(balance),
		Root:     storageRoot,
		CodeHash: codeHash.Bytes(),
	}
	leaf, err := rlp.EncodeToBytes(&account)
	if err != nil {
		return err
	}
	if err := s.tr.Update(entry.Hash[:], leaf); err != nil {
		return err
	}
	if s.pruning.Flat() {
		rawdb.WriteAccountSnapshot(batch, entry.Hash, types.SlimAccountRLP(account))
	}
	return nil
}

// StateRoot returns the Merkle root of the account trie assembled so far.
func (s *StateRebuilder) StateRoot() common.Hash {
	return s.tr.Hash()
}

// CheckMissing fails if any referenced contract code was never supplied.
func (s *StateRebuilder) CheckMissing() error {
	if s.missingCode.Cardinality() == 0 {
		return nil
	}
	missing := s.missingCode.ToSlice()
	sort.Slice(missing, func(i, j int) bool {
		return bytes.Compare(missing[i][:], missing[j][:]) < 0
	})
	return &MissingCodeError{Missing: missing}
}

// Flush commits the trie database to disk. Called once after the final root
// has been verified.
func (s *StateRebuilder) Flush() error {
	if s.root == types.EmptyRootHash {
		return nil
	}
	return s.triedb.Commit(s.root, false)
}
