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

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// ManifestData is the top-level snapshot descriptor: the content hashes of
// every chunk plus the scalars authenticating the restored chain. It is
// immutable once handed to a restoration.
type ManifestData struct {
	// StateHashes are the content hashes of the compressed state chunks.
	StateHashes []common.Hash

	// BlockHashes are the content hashes of the compressed block chunks.
	BlockHashes []common.Hash

	// StateRoot is the root the rebuilt account trie must equal.
	StateRoot common.Hash

	// BlockNumber is the highest block contained in the snapshot.
	BlockNumber uint64

	// BlockHash is the hash of the block at BlockNumber.
	BlockHash common.Hash

	// EngineData carries engine-specific header bytes, opaque to the
	// restoration and relayed unchanged to the block rebuilder.
	EngineData []byte
}

// EncodeManifest serializes a manifest to its canonical RLP form.
func EncodeManifest(m *ManifestData) ([]byte, error) {
	return rlp.EncodeToBytes(m)
}

// DecodeManifest parses a canonical RLP manifest.
func DecodeManifest(data []byte) (*ManifestData, error) {
	m := new(ManifestData)
	if err := rlp.DecodeBytes(data, m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return m, nil
}

// Copy returns a deep copy of the manifest.
func (m *ManifestData) Copy() *ManifestData {
	cpy := *m
	cpy.StateHashes = make([]common.Hash, len(m.StateHashes))
	copy(cpy.StateHashes, m.StateHashes)
	cpy.BlockHashes = make([]common.Hash, len(m.BlockHashes))
	copy(cpy.BlockHashes, m.BlockHashes)
	cpy.EngineData = make([]byte, len(m.EngineData))
	copy(cpy.EngineData, m.EngineData)
	return &cpy
}
