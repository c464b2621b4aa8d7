// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/retroflow-foundation/retroflow/lib/authority"
	"github.com/retroflow-foundation/retroflow/lib/clock"
	"github.com/retroflow-foundation/retroflow/lib/identity"
	"github.com/retroflow-foundation/retroflow/lib/retro"
	"github.com/retroflow-foundation/retroflow/lib/session"
	"github.com/retroflow-foundation/retroflow/lib/socket"
	"github.com/retroflow-foundation/retroflow/lib/store"
	"github.com/retroflow-foundation/retroflow/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socketPath  string
		stateDir    string
		dbPath      string
		showVersion bool
	)

	flag.StringVar(&socketPath, "socket", "", "Unix socket path to serve on (required)")
	flag.StringVar(&stateDir, "state-dir", "", "directory for the signing key and database (required)")
	flag.StringVar(&dbPath, "db", "", "SQLite database path (default: <state-dir>/records.db)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("retroflow-service %s\n", version.Info())
		return nil
	}

	if socketPath == "" {
		return fmt.Errorf("--socket is required")
	}
	if stateDir == "" {
		return fmt.Errorf("--state-dir is required")
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if dbPath == "" {
		dbPath = filepath.Join(stateDir, "records.db")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The service identity signs nothing on the wire; it is the
	// storage owner of every record the service writes, checked by
	// the authorization gate on reads.
	keypair, generated, err := identity.LoadOrGenerate(stateDir)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}
	logger.Info("service identity ready",
		"identity", keypair.Public,
		"generated", generated,
	)

	records, err := store.Open(store.Config{Path: dbPath, Logger: logger})
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	defer records.Close()

	clk := clock.Real()

	tokens, err := session.New(session.Config{
		Records: records,
		Owner:   keypair.Public,
		Clock:   clk,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating token store: %w", err)
	}

	gate, err := authority.NewGate(keypair.Public, keypair.Public, clk)
	if err != nil {
		return fmt.Errorf("creating authorization gate: %w", err)
	}

	engine, err := retro.New(retro.Config{
		Records: records,
		Gate:    gate,
		Clock:   clk,
		Self:    keypair.Public,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating workflow engine: %w", err)
	}

	svc := newService(engine, tokens, clk, keypair.Public, logger)

	server := socket.NewServer(socketPath, logger)
	svc.registerActions(server)

	logger.Info("retroflow service starting",
		"socket", socketPath,
		"db", dbPath,
		"version", version.Short(),
	)
	return server.Serve(ctx)
}
