package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/ferrovax/crate/internal/formatter"
	"github.com/ferrovax/crate/internal/sync"
)

// SyncExport writes database judgments into the tag containers of tracked files.
func (r *Runner) SyncExport(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.syncEngine()
	if err != nil {
		return err
	}

	trackIDs := cmd.StringSlice("track")
	r.logger.Info("starting export pass", "tracks", len(trackIDs))

	prog := make(chan sync.ProgressUpdate, 128)
	done := make(chan struct{})
	go r.drainProgress(prog, done)

	result, err := engine.Export(ctx, sync.ExportOptions{
		TrackIDs: trackIDs,
		Progress: prog,
	})
	close(prog)
	<-done

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	return r.writePlainln("%s", formatter.ExportReport(result))
}

// SyncImport reads changed tag containers back into the database.
func (r *Runner) SyncImport(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.syncEngine()
	if err != nil {
		return err
	}

	full := cmd.Bool("full")
	r.logger.Info("starting import pass", "full", full)

	prog := make(chan sync.ProgressUpdate, 128)
	done := make(chan struct{})
	go r.drainProgress(prog, done)

	result, err := engine.Import(ctx, sync.ImportOptions{
		TrackIDs: cmd.StringSlice("track"),
		Full:     full,
		Progress: prog,
	})
	close(prog)
	<-done

	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}
	return r.writePlainln("%s", formatter.ImportReport(result))
}

// SyncStatus reports pending work without starting a pass.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.syncEngine()
	if err != nil {
		return err
	}

	report, err := engine.Status()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}
	return r.writePlainln("%s", formatter.StatusText(report))
}
