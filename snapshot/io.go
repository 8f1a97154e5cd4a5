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
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"
)

// manifestFile is the name of the manifest inside a loose snapshot directory.
const manifestFile = "MANIFEST"

// chunkCacheSize bounds the reader's in-memory chunk cache. Peers tend to
// re-request the same hot chunks while syncing.
const chunkCacheSize = 32

// chunkFileName returns the basename a chunk is stored under: the lowercase
// hex of its content hash, without a 0x prefix.
func chunkFileName(hash common.Hash) string {
	return common.Bytes2Hex(hash[:])
}

// LooseReader serves a snapshot stored in the loose format: a flat directory
// holding a MANIFEST file plus one file per chunk, named by content hash.
type LooseReader struct {
	dir      string
	manifest *ManifestData
	cache    *lru.Cache
}

// NewLooseReader opens a loose snapshot directory. It succeeds iff the
// directory contains a parseable manifest.
func NewLooseReader(dir string) (*LooseReader, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, err
	}
	manifest, err := DecodeManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	cache, _ := lru.New(chunkCacheSize)
	return &LooseReader{dir: dir, manifest: manifest, cache: cache}, nil
}

// Manifest returns the snapshot's manifest.
func (r *LooseReader) Manifest() *ManifestData {
	return r.manifest
}

// Chunk reads the raw compressed chunk with the given content hash. The
// returned error satisfies os.IsNotExist when no such chunk is stored.
func (r *LooseReader) Chunk(hash common.Hash) ([]byte, error) {
	if cached, ok := r.cache.Get(hash); ok {
		return cached.([]byte), nil
	}
	data, err := os.ReadFile(filepath.Join(r.dir, chunkFileName(hash)))
	if err != nil {
		return nil, err
	}
	r.cache.Add(hash, data)
	return data, nil
}

// LooseWriter persists a snapshot in the loose format. Chunk writes are
// durable before Finish returns; rewriting the same hash is safe.
type LooseWriter struct {
	dir string
}

// NewLooseWriter creates the target directory if absent and returns a writer
// over it.
func NewLooseWriter(dir string) (*LooseWriter, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &LooseWriter{dir: dir}, nil
}

// WriteStateChunk persists a raw compressed state chunk under its content
// hash.
func (w *LooseWriter) WriteStateChunk(hash common.Hash, chunk []byte) error {
	return w.writeChunk(hash, chunk)
}

// WriteBlockChunk persists a raw compressed block chunk under its content
// hash.
func (w *LooseWriter) WriteBlockChunk(hash common.Hash, chunk []byte) error {
	return w.writeChunk(hash, chunk)
}

func (w *LooseWriter) writeChunk(hash common.Hash, chunk []byte) error {
	file, err := os.Create(filepath.Join(w.dir, chunkFileName(hash)))
	if err != nil {
		return err
	}
	if _, err := file.Write(chunk); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Finish serializes the manifest into the directory and flushes it, marking
// the snapshot complete.
func (w *LooseWriter) Finish(manifest *ManifestData) error {
	data, err := EncodeManifest(manifest)
	if err != nil {
		return err
	}
	file, err := os.Create(filepath.Join(w.dir, manifestFile))
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
