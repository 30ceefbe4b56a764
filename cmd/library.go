package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/ferrovax/crate/internal/formatter"
	"github.com/ferrovax/crate/internal/repositories"
	"github.com/ferrovax/crate/internal/shared"
	"github.com/ferrovax/crate/internal/sync"
)

// LibraryScan walks the music directory and registers new audio files as tracks.
func (r *Runner) LibraryScan(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.syncEngine()
	if err != nil {
		return err
	}

	reader, ok := r.adapter.(sync.MetadataReader)
	if !ok {
		return fmt.Errorf("%w: adapter cannot read display metadata", shared.ErrNotImplemented)
	}

	dir := cmd.String("dir")
	if dir == "" {
		dir = r.config.Library.MusicDir
	}
	if dir == "" {
		return fmt.Errorf("%w: no music directory configured", shared.ErrMissingArgument)
	}

	r.logger.Info("starting library scan", "dir", dir)

	prog := make(chan sync.ProgressUpdate, 128)
	done := make(chan struct{})
	go r.drainProgress(prog, done)

	result, err := engine.Scan(ctx, reader, sync.ScanOptions{
		MusicDir:   dir,
		Extensions: r.config.Library.Extensions,
		NumWorkers: r.config.Sync.ScanWorkers,
		RateLimit:  r.config.Sync.ScanRateLimit,
		Progress:   prog,
	})
	close(prog)
	<-done

	if err != nil {
		return err
	}

	return r.writePlainln("%s", formatter.ScanReport(result))
}

// LibraryList prints tracked tracks, optionally filtered by tag or rating.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if label := cmd.String("tag"); label != "" {
		criteria["tag"] = label
	}
	if min := cmd.Int("min-rating"); min > 0 {
		criteria["min_rating"] = min
	}

	tracks, err := repositories.NewTrackRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := formatter.TracksToJSON(tracks)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}
	return r.writePlain("%s", formatter.TracksToText(tracks))
}

// LibraryExport writes the library listing to a file in the chosen format.
func (r *Runner) LibraryExport(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	tracks, err := repositories.NewTrackRepository(db).List(map[string]any{})
	if err != nil {
		return err
	}

	path, err := formatter.WriteLibraryExport(tracks, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	return r.writePlain("Library exported to %s (%d tracks)\n", path, len(tracks))
}
