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
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestLooseRoundTrip(t *testing.T) {
	dir := t.TempDir()

	manifest := &ManifestData{
		StateHashes: []common.Hash{crypto.Keccak256Hash([]byte("s1")), crypto.Keccak256Hash([]byte("s2"))},
		BlockHashes: []common.Hash{crypto.Keccak256Hash([]byte("b1"))},
		StateRoot:   crypto.Keccak256Hash([]byte("root")),
		BlockNumber: 42,
		BlockHash:   crypto.Keccak256Hash([]byte("head")),
		EngineData:  []byte{0x01, 0x02},
	}
	writer, err := NewLooseWriter(dir)
	if err != nil {
		t.Fatalf("creating writer: %v", err)
	}
	if err := writer.WriteStateChunk(manifest.StateHashes[0], []byte("state one")); err != nil {
		t.Fatalf("writing state chunk: %v", err)
	}
	if err := writer.WriteBlockChunk(manifest.BlockHashes[0], []byte("block one")); err != nil {
		t.Fatalf("writing block chunk: %v", err)
	}
	// A second write of the same hash must be safe.
	if err := writer.WriteStateChunk(manifest.StateHashes[0], []byte("state one")); err != nil {
		t.Fatalf("rewriting state chunk: %v", err)
	}
	if err := writer.Finish(manifest); err != nil {
		t.Fatalf("finishing snapshot: %v", err)
	}

	reader, err := NewLooseReader(dir)
	if err != nil {
		t.Fatalf("opening reader: %v", err)
	}
	if !reflect.DeepEqual(reader.Manifest(), manifest) {
		t.Fatalf("manifest mismatch: got %+v, want %+v", reader.Manifest(), manifest)
	}
	chunk, err := reader.Chunk(manifest.StateHashes[0])
	if err != nil {
		t.Fatalf("reading chunk: %v", err)
	}
	if !bytes.Equal(chunk, []byte("state one")) {
		t.Fatalf("chunk content mismatch: %q", chunk)
	}
	// Cached path returns the same content.
	if again, _ := reader.Chunk(manifest.StateHashes[0]); !bytes.Equal(again, chunk) {
		t.Fatalf("cached chunk mismatch: %q", again)
	}
	if _, err := reader.Chunk(manifest.StateHashes[1]); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist for unwritten chunk, got %v", err)
	}
}

func TestLooseReaderRequiresManifest(t *testing.T) {
	if _, err := NewLooseReader(t.TempDir()); err == nil {
		t.Fatal("expected error opening directory without manifest")
	}
}

func TestLooseReaderRejectsGarbageManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, manifestFile), []byte("not rlp at all"), 0600); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	if _, err := NewLooseReader(dir); err == nil {
		t.Fatal("expected error for unparseable manifest")
	}
}

func TestManifestCopyIsDeep(t *testing.T) {
	manifest := &ManifestData{
		StateHashes: []common.Hash{crypto.Keccak256Hash([]byte("a"))},
		BlockHashes: []common.Hash{crypto.Keccak256Hash([]byte("b"))},
	}
	cpy := manifest.Copy()
	cpy.StateHashes[0] = common.Hash{}
	if manifest.StateHashes[0] == (common.Hash{}) {
		t.Fatal("copy aliased the original state hashes")
	}
}
