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

// parity is the snapshot restoration tool: it restores a node's databases
// from a loose snapshot directory and inspects snapshot manifests.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gofrs/flock"
	"github.com/mattn/go-isatty"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	pio "github.com/whatisgravity/parity/io"
	"github.com/whatisgravity/parity/journaldb"
	"github.com/whatisgravity/parity/params"
	"github.com/whatisgravity/parity/snapshot"
)

var (
	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the databases and snapshots",
		Value: defaultDataDir(),
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=detail",
		Value: 3,
	}
	pruningFlag = &cli.StringFlag{
		Name:  "pruning",
		Usage: "State journal strategy (archive, light, fast, basic)",
		Value: journaldb.Default.String(),
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
)

var app = &cli.App{
	Name:  "parity",
	Usage: "snapshot restoration tool",
	Flags: []cli.Flag{datadirFlag, verbosityFlag, pruningFlag, configFlag},
	Before: func(ctx *cli.Context) error {
		usecolor := isatty.IsTerminal(os.Stderr.Fd())
		level := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, usecolor)))
		return nil
	},
	Commands: []*cli.Command{
		{
			Name:      "manifest",
			Usage:     "Print the manifest of a loose snapshot directory",
			ArgsUsage: "<snapshot-dir>",
			Action:    printManifest,
		},
		{
			Name:      "restore",
			Usage:     "Restore the databases from a loose snapshot directory",
			ArgsUsage: "<snapshot-dir>",
			Action:    restore,
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".parity")
	}
	return "parity-data"
}

// fileConfig is the TOML-configurable subset of the tool's settings. Flags
// given explicitly on the command line win over the file.
type fileConfig struct {
	DataDir        string
	Pruning        string
	StagingCache   int
	StagingHandles int
}

func loadConfig(ctx *cli.Context) (fileConfig, error) {
	cfg := fileConfig{
		DataDir: ctx.String(datadirFlag.Name),
		Pruning: ctx.String(pruningFlag.Name),
	}
	if path := ctx.String(configFlag.Name); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		if ctx.IsSet(datadirFlag.Name) {
			cfg.DataDir = ctx.String(datadirFlag.Name)
		}
		if ctx.IsSet(pruningFlag.Name) {
			cfg.Pruning = ctx.String(pruningFlag.Name)
		}
	}
	return cfg, nil
}

func printManifest(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: %s", ctx.Command.ArgsUsage)
	}
	reader, err := snapshot.NewLooseReader(ctx.Args().First())
	if err != nil {
		return err
	}
	m := reader.Manifest()
	fmt.Printf("block number: %d\n", m.BlockNumber)
	fmt.Printf("block hash:   %x\n", m.BlockHash)
	fmt.Printf("state root:   %x\n", m.StateRoot)
	fmt.Printf("state chunks: %d\n", len(m.StateHashes))
	fmt.Printf("block chunks: %d\n", len(m.BlockHashes))
	return nil
}

func restore(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: %s", ctx.Command.ArgsUsage)
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	pruning, err := journaldb.ParseAlgorithm(cfg.Pruning)
	if err != nil {
		return err
	}
	reader, err := snapshot.NewLooseReader(ctx.Args().First())
	if err != nil {
		return err
	}
	manifest := reader.Manifest()

	spec := params.DevSpec()
	chainRoot := filepath.Join(cfg.DataDir, spec.Name)
	if err := os.MkdirAll(chainRoot, 0700); err != nil {
		return err
	}

	// Hold the datadir against concurrent instances for the whole restore.
	dirLock := flock.New(filepath.Join(chainRoot, "LOCK"))
	locked, err := dirLock.TryLock()
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("datadir %s is used by another process", cfg.DataDir)
	}
	defer dirLock.Unlock()

	var service *snapshot.Service
	executor := pio.NewService[snapshot.ClientIoMessage](
		pio.HandlerFunc[snapshot.ClientIoMessage](func(msg snapshot.ClientIoMessage) {
			service.Handle(msg)
		}))
	service, err = snapshot.NewService(snapshot.ServiceConfig{
		Spec:           spec,
		Pruning:        pruning,
		ClientDB:       filepath.Join(chainRoot, pruning.String(), "db"),
		ChainRoot:      chainRoot,
		Channel:        executor.Channel(),
		StagingCache:   cfg.StagingCache,
		StagingHandles: cfg.StagingHandles,
	})
	if err != nil {
		return err
	}
	executor.Start()
	defer executor.Stop()
	defer service.Stop()

	service.BeginRestore(manifest)
	for _, hash := range manifest.StateHashes {
		chunk, err := reader.Chunk(hash)
		if err != nil {
			return fmt.Errorf("reading state chunk %x: %w", hash, err)
		}
		service.RestoreStateChunk(hash, chunk)
	}
	for _, hash := range manifest.BlockHashes {
		chunk, err := reader.Chunk(hash)
		if err != nil {
			return fmt.Errorf("reading block chunk %x: %w", hash, err)
		}
		service.RestoreBlockChunk(hash, chunk)
	}

	total := len(manifest.StateHashes) + len(manifest.BlockHashes)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		switch service.Status() {
		case snapshot.Inactive:
			// Inactive either means the begin message has not been handled
			// yet, or the restoration finalized; the served manifest tells
			// them apart.
			if served := service.Manifest(); served != nil && served.StateRoot == manifest.StateRoot {
				log.Info("Restoration complete", "block", manifest.BlockNumber, "hash", manifest.BlockHash)
				return nil
			}
		case snapshot.Failed:
			return fmt.Errorf("restoration failed, see warnings above")
		case snapshot.Ongoing:
			state, blocks := service.ChunksDone()
			log.Info("Restoring snapshot", "done", state+blocks, "total", total)
		}
	}
	return nil
}
