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

// Package params holds the chain specification consumed at service
// construction: the chain's name, its consensus engine and the raw genesis
// block.
package params

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/whatisgravity/parity/consensus"
)

// Spec ties together the immutable chain parameters. The genesis block is
// carried as its RLP encoding, the form in which it is injected into the
// staging chain during restoration.
type Spec struct {
	// Name identifies the chain in logs and data directory layout.
	Name string

	// Engine verifies block seals for this chain.
	Engine consensus.Engine

	// Genesis is the RLP encoding of the chain's genesis block.
	Genesis []byte
}

// GenesisBlock decodes the spec's genesis block.
func (s *Spec) GenesisBlock() (*types.Block, error) {
	block := new(types.Block)
	if err := rlp.DecodeBytes(s.Genesis, block); err != nil {
		return nil, fmt.Errorf("invalid genesis block rlp: %w", err)
	}
	return block, nil
}

// DevSpec returns a deterministic development chain spec with a faker engine.
// Tests and the development CLI default use it.
func DevSpec() *Spec {
	header := &types.Header{
		ParentHash:  types.EmptyRootHash,
		UncleHash:   types.EmptyUncleHash,
		Root:        types.EmptyRootHash,
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Number:      new(big.Int),
		Difficulty:  big.NewInt(131072),
		GasLimit:    8_000_000,
		Time:        0,
	}
	genesis := types.NewBlockWithHeader(header)

	raw, err := rlp.EncodeToBytes(genesis)
	if err != nil {
		panic(fmt.Sprintf("dev genesis encoding failed: %v", err))
	}
	return &Spec{
		Name:    "dev",
		Engine:  consensus.NewFaker(),
		Genesis: raw,
	}
}
