// Command volstat prints the indexing status of every registered volume from
// the state database, for diagnosing a deployment without hitting the API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"cloud-indexer/internal/database"
	"cloud-indexer/internal/mounts"
)

const defaultStateDir = "/state"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	stateDir := os.Getenv("STATE_DIR")
	if stateDir == "" {
		stateDir = defaultStateDir
	}
	dbPath := filepath.Join(stateDir, "indexer.db")

	store, err := database.Open(ctx, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open state database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure STATE_DIR is set correctly (current: %s)\n", stateDir)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close state database: %v\n", err)
		}
	}()

	if err := printStatus(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, store *database.Store) error {
	volumes, err := store.ListVolumes(ctx)
	if err != nil {
		return fmt.Errorf("listing volumes: %w", err)
	}
	progress, err := store.ListProgress(ctx)
	if err != nil {
		return fmt.Errorf("listing progress: %w", err)
	}

	if len(volumes) == 0 {
		fmt.Println("No volumes registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMOUNT PATH\tMOUNTED\tENABLED\tSTATE\tINDEXED\tTOTAL\tLAST SCAN\tLAST ERROR")

	for _, v := range volumes {
		p := progress[v.Name]

		total := "-"
		if p.TotalFiles != nil {
			total = fmt.Sprintf("%d", *p.TotalFiles)
		}
		lastScan := "-"
		if !p.LastScanAt.IsZero() {
			lastScan = p.LastScanAt.Format(time.RFC3339)
		}
		lastError := p.LastError
		if lastError == "" {
			lastError = "-"
		}

		fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%s\t%d\t%s\t%s\t%s\n",
			v.Name,
			v.MountPath,
			mounts.Probe(v.MountPath),
			v.Enabled,
			p.State,
			p.IndexedFiles,
			total,
			lastScan,
			lastError,
		)
	}

	return w.Flush()
}
