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

// Package snapshot implements the snapshot restoration service: it rebuilds a
// node's world state and block history from a chunked, content-addressed
// snapshot and atomically swaps the rebuilt database into the live data
// directory. It also serves the current snapshot's manifest and chunks to
// peers.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"

	"github.com/whatisgravity/parity/consensus"
	"github.com/whatisgravity/parity/io"
	"github.com/whatisgravity/parity/journaldb"
	"github.com/whatisgravity/parity/params"
)

// RestorationStatus describes the service's restoration state machine.
type RestorationStatus uint8

const (
	// Inactive means no restoration is running.
	Inactive RestorationStatus = iota

	// Ongoing means a restoration is accepting chunks.
	Ongoing

	// Failed means the last restoration aborted on an error. A new
	// BeginRestore clears it.
	Failed
)

// String implements fmt.Stringer.
func (s RestorationStatus) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Ongoing:
		return "ongoing"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ClientIoMessage is the message set exchanged between the service's public
// fire-and-forget methods and the io executor running the synchronous
// counterparts.
type ClientIoMessage interface {
	clientIoMessage()
}

// BeginRestoration asks the executor to initialize a restoration.
type BeginRestoration struct {
	Manifest *ManifestData
}

// FeedStateChunk carries one raw compressed state chunk.
type FeedStateChunk struct {
	Hash  common.Hash
	Chunk []byte
}

// FeedBlockChunk carries one raw compressed block chunk.
type FeedBlockChunk struct {
	Hash  common.Hash
	Chunk []byte
}

func (BeginRestoration) clientIoMessage() {}
func (FeedStateChunk) clientIoMessage()   {}
func (FeedBlockChunk) clientIoMessage()   {}

// Channel posts client io messages to the executor.
type Channel = io.Channel[ClientIoMessage]

// SnapshotService is the surface consumed by network and RPC code.
type SnapshotService interface {
	// Manifest returns the most recent snapshot manifest, or nil when no
	// snapshot is being served.
	Manifest() *ManifestData

	// Chunk returns the raw compressed chunk with the given content hash, or
	// nil when it is not available.
	Chunk(hash common.Hash) []byte

	// Status returns the restoration status.
	Status() RestorationStatus

	// ChunksDone returns the number of state and block chunks completed by
	// the current restoration.
	ChunksDone() (uint64, uint64)

	// BeginRestore starts restoring a snapshot asynchronously. Any previous
	// restoration is reset; the previous snapshot may become unavailable.
	BeginRestore(manifest *ManifestData)

	// AbortRestore aborts an in-progress restoration, if any.
	AbortRestore()

	// RestoreStateChunk feeds a raw state chunk to be processed
	// asynchronously. No-op when not restoring.
	RestoreStateChunk(hash common.Hash, chunk []byte)

	// RestoreBlockChunk feeds a raw block chunk to be processed
	// asynchronously. No-op when not restoring.
	RestoreBlockChunk(hash common.Hash, chunk []byte)
}

// Restoration is the per-attempt aggregate: the manifest, the sets of chunks
// still owed, both rebuilders and the writer persisting accepted chunks for
// the next served snapshot. It is exclusively owned by the service and only
// touched under the service's restoration lock.
type Restoration struct {
	manifest        *ManifestData
	stateChunksLeft mapset.Set[common.Hash]
	blockChunksLeft mapset.Set[common.Hash]
	db              ethdb.Database
	state           *StateRebuilder
	blocks          *BlockRebuilder
	writer          *LooseWriter
	snappyBuffer    []byte
	finalStateRoot  common.Hash

	closeOnce sync.Once
}

// restorationParams collects everything needed to start a restoration.
type restorationParams struct {
	manifest *ManifestData
	pruning  journaldb.Algorithm
	dbPath   string
	writer   *LooseWriter
	genesis  *types.Block
	cache    int
	handles  int
}

// newRestoration opens the staging database, seeds the staging chain with the
// genesis block and instantiates both rebuilders. Any failure propagates with
// no partial state left behind.
func newRestoration(p restorationParams) (*Restoration, error) {
	db, err := rawdb.NewLevelDBDatabase(p.dbPath, p.cache, p.handles, "parity/snapshot", false)
	if err != nil {
		return nil, err
	}
	blocks, err := NewBlockRebuilder(db, p.genesis, p.manifest.BlockNumber, p.manifest.BlockHash, p.manifest.EngineData)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Restoration{
		manifest:        p.manifest,
		stateChunksLeft: mapset.NewThreadUnsafeSet[common.Hash](p.manifest.StateHashes...),
		blockChunksLeft: mapset.NewThreadUnsafeSet[common.Hash](p.manifest.BlockHashes...),
		db:              db,
		state:           NewStateRebuilder(db, p.pruning),
		blocks:          blocks,
		writer:          p.writer,
		finalStateRoot:  p.manifest.StateRoot,
	}, nil
}

// feedState ingests one state chunk. Chunks whose hash is not owed are
// silently dropped; the returned flag reports whether the chunk was accepted.
func (r *Restoration) feedState(hash common.Hash, chunk []byte) (bool, error) {
	if !r.stateChunksLeft.Contains(hash) {
		return false, nil
	}
	r.stateChunksLeft.Remove(hash)

	if crypto.Keccak256Hash(chunk) != hash {
		return false, &CorruptChunkError{Hash: hash, Err: errHashMismatch}
	}
	n, err := decompressInto(chunk, &r.snappyBuffer)
	if err != nil {
		return false, err
	}
	if err := r.state.Feed(r.snappyBuffer[:n]); err != nil {
		return false, err
	}
	// The compressed form is what gets persisted and later served.
	if err := r.writer.WriteStateChunk(hash, chunk); err != nil {
		return false, err
	}
	return true, nil
}

// feedBlocks ingests one block chunk, mirroring feedState.
func (r *Restoration) feedBlocks(hash common.Hash, chunk []byte, engine consensus.Engine) (bool, error) {
	if !r.blockChunksLeft.Contains(hash) {
		return false, nil
	}
	r.blockChunksLeft.Remove(hash)

	if crypto.Keccak256Hash(chunk) != hash {
		return false, &CorruptChunkError{Hash: hash, Err: errHashMismatch}
	}
	n, err := decompressInto(chunk, &r.snappyBuffer)
	if err != nil {
		return false, err
	}
	if err := r.blocks.Feed(r.snappyBuffer[:n], engine); err != nil {
		return false, err
	}
	if err := r.writer.WriteBlockChunk(hash, chunk); err != nil {
		return false, err
	}
	return true, nil
}

// isDone reports whether every owed chunk has been fed.
func (r *Restoration) isDone() bool {
	return r.stateChunksLeft.Cardinality() == 0 && r.blockChunksLeft.Cardinality() == 0
}

// finalize verifies the rebuilt state root, checks for missing code, glues
// the block runs and writes the manifest. The staging database handle is
// released before returning so the service can move the directory.
func (r *Restoration) finalize() error {
	defer r.release()

	if !r.isDone() {
		return nil
	}
	if root := r.state.StateRoot(); root != r.finalStateRoot {
		return &WrongStateRootError{Expected: r.finalStateRoot, Got: root}
	}
	if err := r.state.CheckMissing(); err != nil {
		return err
	}
	if err := r.blocks.GlueChunks(); err != nil {
		return err
	}
	if err := r.state.Flush(); err != nil {
		return err
	}
	return r.writer.Finish(r.manifest)
}

// release closes the staging database. Safe to call more than once.
func (r *Restoration) release() {
	r.closeOnce.Do(func() {
		if err := r.db.Close(); err != nil {
			log.Warn("Failed to close staging database", "err", err)
		}
	})
}

// ServiceConfig carries the immutable configuration of a snapshot service.
type ServiceConfig struct {
	// Spec is the chain specification: engine and genesis block.
	Spec *params.Spec

	// Pruning selects the staging database layout.
	Pruning journaldb.Algorithm

	// ClientDB is the path of the live client database to be replaced on a
	// successful restoration.
	ClientDB string

	// ChainRoot is the chain's data root; the snapshot directory tree lives
	// beneath it.
	ChainRoot string

	// Channel posts restoration work to the io executor.
	Channel Channel

	// StagingCache and StagingHandles configure the staging database. Zero
	// values select modest defaults.
	StagingCache   int
	StagingHandles int
}

const (
	defaultStagingCache   = 16 // megabytes
	defaultStagingHandles = 16
)

// Service is the long-lived restoration facade. It owns the on-disk snapshot
// directory tree, drives the restoration lifecycle and serves the current
// snapshot to peers.
//
// Locking: restLock guards the restoration aggregate and is held for whole
// feed/init/abort/finalize calls; statusLock and readerLock are independent
// so observers never block bulk ingest. Lock order is restoration → status
// and restoration → reader, never the reverse.
type Service struct {
	restLock    sync.Mutex
	restoration *Restoration

	clientDB  string
	chainRoot string
	ioChannel Channel
	pruning   journaldb.Algorithm
	engine    consensus.Engine
	genesis   *types.Block
	cache     int
	handles   int

	statusLock sync.Mutex
	status     RestorationStatus

	readerLock sync.RWMutex
	reader     *LooseReader

	stateChunks atomic.Uint64
	blockChunks atomic.Uint64
}

// NewService creates a snapshot service over the given chain root. A loose
// snapshot already present under snapshot/current is opened for serving; a
// leftover restoration directory from an interrupted run is removed.
func NewService(config ServiceConfig) (*Service, error) {
	if config.Spec == nil || config.Spec.Engine == nil {
		return nil, errors.New("snapshot service requires a chain spec with an engine")
	}
	genesis, err := config.Spec.GenesisBlock()
	if err != nil {
		return nil, err
	}
	cache, handles := config.StagingCache, config.StagingHandles
	if cache <= 0 {
		cache = defaultStagingCache
	}
	if handles <= 0 {
		handles = defaultStagingHandles
	}
	service := &Service{
		clientDB:  config.ClientDB,
		chainRoot: config.ChainRoot,
		ioChannel: config.Channel,
		pruning:   config.Pruning,
		engine:    config.Spec.Engine,
		genesis:   genesis,
		cache:     cache,
		handles:   handles,
		status:    Inactive,
	}
	if err := os.MkdirAll(service.rootDir(), 0700); err != nil {
		return nil, err
	}
	// The rename in replaceClientDB needs the client database's parent to
	// exist even on a first-ever restore.
	if err := os.MkdirAll(filepath.Dir(service.clientDB), 0700); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(service.restorationDir()); err != nil {
		return nil, err
	}
	if reader, err := NewLooseReader(service.snapshotDir()); err == nil {
		service.reader = reader
	}
	return service, nil
}

// rootDir is the snapshot tree root under the chain root.
func (s *Service) rootDir() string {
	return filepath.Join(s.chainRoot, "snapshot")
}

// snapshotDir holds the currently served snapshot.
func (s *Service) snapshotDir() string {
	return filepath.Join(s.rootDir(), "current")
}

// restorationDir holds all transient restoration state.
func (s *Service) restorationDir() string {
	return filepath.Join(s.rootDir(), "restoration")
}

// restorationDB is the staging database being filled.
func (s *Service) restorationDB() string {
	return filepath.Join(s.restorationDir(), "db")
}

// tempRecoveryDir receives the files that become the next served snapshot.
func (s *Service) tempRecoveryDir() string {
	return filepath.Join(s.restorationDir(), "temp")
}

// backupDB briefly holds the old client database during the swap.
func (s *Service) backupDB() string {
	return filepath.Join(s.restorationDir(), "backup_db")
}

// setStatus publishes a status transition. Always called after the
// corresponding on-disk or in-memory mutation has been committed.
func (s *Service) setStatus(status RestorationStatus) {
	s.statusLock.Lock()
	s.status = status
	s.statusLock.Unlock()
}

// InitRestore initializes a restoration synchronously, tearing down any
// existing one. On failure no restoration is left active and the status is
// unchanged.
func (s *Service) InitRestore(manifest *ManifestData) error {
	s.restLock.Lock()
	defer s.restLock.Unlock()

	if s.restoration != nil {
		s.restoration.release()
		s.restoration = nil
	}
	restDir := s.restorationDir()
	if err := os.RemoveAll(restDir); err != nil {
		return err
	}
	if err := os.MkdirAll(restDir, 0700); err != nil {
		return err
	}
	writer, err := NewLooseWriter(s.tempRecoveryDir())
	if err != nil {
		return err
	}
	rest, err := newRestoration(restorationParams{
		manifest: manifest,
		pruning:  s.pruning,
		dbPath:   s.restorationDB(),
		writer:   writer,
		genesis:  s.genesis,
		cache:    s.cache,
		handles:  s.handles,
	})
	if err != nil {
		return err
	}
	s.restoration = rest
	s.stateChunks.Store(0)
	s.blockChunks.Store(0)
	s.setStatus(Ongoing)
	log.Info("Starting snapshot restoration", "blocks", len(manifest.BlockHashes), "states", len(manifest.StateHashes), "root", manifest.StateRoot)
	return nil
}

// feedChunk routes one chunk of either kind into the active restoration and
// finalizes when it was the last one. No-op when no restoration is active or
// the status is wrong (chunks racing an abort).
func (s *Service) feedChunk(hash common.Hash, chunk []byte, isState bool) error {
	s.restLock.Lock()
	defer s.restLock.Unlock()

	if s.Status() != Ongoing {
		return nil
	}
	rest := s.restoration
	if rest == nil {
		return nil
	}
	var (
		accepted bool
		err      error
	)
	if isState {
		accepted, err = rest.feedState(hash, chunk)
	} else {
		accepted, err = rest.feedBlocks(hash, chunk, s.engine)
	}
	if err != nil {
		return err
	}
	if accepted {
		if isState {
			s.stateChunks.Add(1)
			stateChunkMeter.Mark(1)
		} else {
			s.blockChunks.Add(1)
			blockChunkMeter.Mark(1)
		}
	}
	if rest.isDone() {
		return s.finalizeRestoration()
	}
	return nil
}

// finalizeRestoration completes the restoration and swaps the rebuilt
// database and snapshot into place. The restoration lock is already held;
// re-acquiring it here would deadlock.
func (s *Service) finalizeRestoration() error {
	log.Trace("Finalizing snapshot restoration")
	start := time.Now()

	s.stateChunks.Store(0)
	s.blockChunks.Store(0)

	// Destroy the restoration before replacing databases and snapshot.
	rest := s.restoration
	s.restoration = nil
	if rest != nil {
		if err := rest.finalize(); err != nil {
			return err
		}
	}
	if err := s.replaceClientDB(); err != nil {
		return err
	}

	s.readerLock.Lock()
	defer s.readerLock.Unlock()
	s.reader = nil

	snapshotDir := s.snapshotDir()
	log.Trace("Replacing served snapshot", "dir", snapshotDir)
	if err := os.RemoveAll(snapshotDir); err != nil {
		return err
	}
	if err := os.Mkdir(snapshotDir, 0700); err != nil {
		return err
	}
	entries, err := os.ReadDir(s.tempRecoveryDir())
	if err != nil {
		return err
	}
	for _, entry := range entries {
		oldPath := filepath.Join(s.tempRecoveryDir(), entry.Name())
		newPath := filepath.Join(snapshotDir, entry.Name())
		if err := os.Rename(oldPath, newPath); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(s.restorationDir()); err != nil {
		log.Warn("Failed to remove restoration directory", "err", err)
	}
	reader, err := NewLooseReader(snapshotDir)
	if err != nil {
		return err
	}
	s.reader = reader

	s.setStatus(Inactive)
	finalizeTimer.UpdateSince(start)
	log.Info("Snapshot restoration complete", "elapsed", common.PrettyDuration(time.Since(start)))
	return nil
}

// replaceClientDB swaps the staging database into the client database path,
// keeping the old database as a backup until the swap has succeeded. This is
// the single user-visible transition of a restoration.
func (s *Service) replaceClientDB() error {
	ourDB := s.restorationDB()
	log.Trace("Replacing client database", "old", s.clientDB, "new", ourDB)

	backupDB := s.backupDB()
	if err := os.RemoveAll(backupDB); err != nil {
		return err
	}
	existed := true
	if err := os.Rename(s.clientDB, backupDB); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		existed = false
	}
	if err := os.Rename(ourDB, s.clientDB); err != nil {
		// Restore the backup.
		if existed {
			if rerr := os.Rename(backupDB, s.clientDB); rerr != nil {
				log.Error("Failed to restore client database backup", "err", rerr)
			}
		}
		return err
	}
	if existed {
		if err := os.RemoveAll(backupDB); err != nil {
			// A leftover backup is harmless; the next restore clears it.
			log.Warn("Failed to remove client database backup", "err", err)
		}
	}
	return nil
}

// FeedStateChunk processes a state chunk synchronously. Any error fails the
// restoration and tears down its on-disk state; errors are not re-raised.
func (s *Service) FeedStateChunk(hash common.Hash, chunk []byte) {
	if err := s.feedChunk(hash, chunk, true); err != nil {
		log.Warn("Error during state restoration", "hash", hash, "err", err)
		s.failRestoration()
	}
}

// FeedBlockChunk processes a block chunk synchronously, mirroring
// FeedStateChunk.
func (s *Service) FeedBlockChunk(hash common.Hash, chunk []byte) {
	if err := s.feedChunk(hash, chunk, false); err != nil {
		log.Warn("Error during block restoration", "hash", hash, "err", err)
		s.failRestoration()
	}
}

// failRestoration drops the active restoration, marks the service failed and
// clears the restoration tree.
func (s *Service) failRestoration() {
	s.restLock.Lock()
	if s.restoration != nil {
		s.restoration.release()
		s.restoration = nil
	}
	s.restLock.Unlock()
	s.setStatus(Failed)
	if err := os.RemoveAll(s.restorationDir()); err != nil {
		log.Warn("Failed to remove restoration directory", "err", err)
	}
}

// Handle dispatches executor messages to the synchronous methods. It
// implements io.Handler and must only run on the io executor goroutine.
func (s *Service) Handle(msg ClientIoMessage) {
	switch msg := msg.(type) {
	case BeginRestoration:
		if err := s.InitRestore(msg.Manifest); err != nil {
			log.Warn("Failed to initialize snapshot restoration", "err", err)
		}
	case FeedStateChunk:
		s.FeedStateChunk(msg.Hash, msg.Chunk)
	case FeedBlockChunk:
		s.FeedBlockChunk(msg.Hash, msg.Chunk)
	}
}

// Stop releases the service's restoration and reader handles. The service
// must not be used afterwards.
func (s *Service) Stop() {
	s.restLock.Lock()
	if s.restoration != nil {
		s.restoration.release()
		s.restoration = nil
	}
	s.restLock.Unlock()

	s.readerLock.Lock()
	s.reader = nil
	s.readerLock.Unlock()
}

// Manifest implements SnapshotService.
func (s *Service) Manifest() *ManifestData {
	s.readerLock.RLock()
	defer s.readerLock.RUnlock()
	if s.reader == nil {
		return nil
	}
	return s.reader.Manifest().Copy()
}

// Chunk implements SnapshotService.
func (s *Service) Chunk(hash common.Hash) []byte {
	s.readerLock.RLock()
	defer s.readerLock.RUnlock()
	if s.reader == nil {
		return nil
	}
	chunk, err := s.reader.Chunk(hash)
	if err != nil {
		return nil
	}
	return chunk
}

// Status implements SnapshotService.
func (s *Service) Status() RestorationStatus {
	s.statusLock.Lock()
	defer s.statusLock.Unlock()
	return s.status
}

// ChunksDone implements SnapshotService.
func (s *Service) ChunksDone() (uint64, uint64) {
	return s.stateChunks.Load(), s.blockChunks.Load()
}

// BeginRestore implements SnapshotService.
func (s *Service) BeginRestore(manifest *ManifestData) {
	if err := s.ioChannel.Send(BeginRestoration{Manifest: manifest}); err != nil {
		log.Warn("Failed to post restoration start", "err", err)
	}
}

// AbortRestore implements SnapshotService. The abort is immediate: feed
// messages already queued behind it observe the status change and no-op.
func (s *Service) AbortRestore() {
	s.restLock.Lock()
	if s.restoration != nil {
		s.restoration.release()
		s.restoration = nil
	}
	s.restLock.Unlock()
	s.setStatus(Inactive)
	if err := os.RemoveAll(s.restorationDir()); err != nil {
		log.Warn("Failed to remove restoration directory", "err", err)
	}
}

// RestoreStateChunk implements SnapshotService.
func (s *Service) RestoreStateChunk(hash common.Hash, chunk []byte) {
	if err := s.ioChannel.Send(FeedStateChunk{Hash: hash, Chunk: chunk}); err != nil {
		log.Warn("Failed to post state chunk", "hash", hash, "err", err)
	}
}

// RestoreBlockChunk implements SnapshotService.
func (s *Service) RestoreBlockChunk(hash common.Hash, chunk []byte) {
	if err := s.ioChannel.Send(FeedBlockChunk{Hash: hash, Chunk: chunk}); err != nil {
		log.Warn("Failed to post block chunk", "hash", hash, "err", err)
	}
}

var _ SnapshotService = (*Service)(nil)
