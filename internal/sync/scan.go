package sync

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	stdsync "sync"

	"golang.org/x/time/rate"

	"github.com/ferrovax/crate/internal/codec"
	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/shared"
)

// MetadataReader reads display metadata during a library scan. Satisfied by
// codec.TaglibAdapter.
type MetadataReader interface {
	ReadBasic(path string) (title, artist, album string, err error)
}

// ScanOptions contains configuration for a library scan.
type ScanOptions struct {
	MusicDir   string
	Extensions []string // file extensions to consider; empty means every supported container
	NumWorkers int      // concurrent tag readers (default 4, capped at 16)
	RateLimit  float64  // files per second (default 100)
	Progress   chan<- ProgressUpdate
}

// ScanResult summarizes one library scan.
type ScanResult struct {
	Discovered int
	Added      int
	Known      int
	Moved      int
	Failed     int
	Failures   []TrackFailure
}

type scanOutcome struct {
	path   string
	title  string
	artist string
	album  string
	err    error
}

// Scan walks the music directory, reads display metadata off every supported
// file with a worker pool, and registers unknown paths as local tracks. Tag
// reads fan out across workers under a rate limiter to keep a large library
// from saturating disk I/O; database writes stay on the collecting goroutine.
//
// Scan holds the pass lease, so it cannot overlap an export or import.
func (e *Engine) Scan(ctx context.Context, reader MetadataReader, opts ScanOptions) (*ScanResult, error) {
	release, err := e.lease.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 16 {
		opts.NumWorkers = 16
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 100.0
	}

	paths, err := discoverFiles(opts.MusicDir, opts.Extensions)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{Discovered: len(paths)}
	e.logger.Info("library scan started", "dir", opts.MusicDir, "files", len(paths), "workers", opts.NumWorkers)

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan string, len(paths))
	outcomes := make(chan scanOutcome, len(paths))

	var wg stdsync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go scanWorker(ctx, &wg, reader, limiter, jobs, outcomes)
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	stride := progressStride(len(paths))
	completed := 0
	for outcome := range outcomes {
		completed++

		if outcome.err != nil {
			result.Failed++
			result.Failures = e.appendFailure(result.Failures, TrackFailure{
				Path: outcome.path, Reason: outcome.err.Error(),
			})
		} else if err := e.registerFile(outcome, result); err != nil {
			return nil, err
		}

		if completed%stride == 0 || completed == len(paths) {
			sendProgress(opts.Progress, trackUpdate(PhaseScanning, completed, len(paths)))
		}
	}

	sendProgress(opts.Progress, phaseUpdate(PhaseCommitted, len(paths), "scan complete"))
	e.logger.Info("library scan finished",
		"discovered", result.Discovered, "added", result.Added,
		"known", result.Known, "failed", result.Failed)

	return result, nil
}

func scanWorker(ctx context.Context, wg *stdsync.WaitGroup, reader MetadataReader, limiter *rate.Limiter, jobs <-chan string, outcomes chan<- scanOutcome) {
	defer wg.Done()

	for path := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		title, artist, album, err := reader.ReadBasic(path)
		outcomes <- scanOutcome{path: path, title: title, artist: artist, album: album, err: err}
	}
}

// registerFile creates a track row for a path the database has not seen.
// Known paths are counted and left alone; a scan never overwrites judgments
// or display metadata the user may have edited.
func (e *Engine) registerFile(outcome scanOutcome, result *ScanResult) error {
	_, err := e.tracks.GetByPath(outcome.path)
	if err == nil {
		result.Known++
		return nil
	}
	if !errors.Is(err, shared.ErrTrackNotFound) {
		return err
	}

	moved, err := e.relocateByProviderID(outcome.path)
	if err != nil {
		return err
	}
	if moved {
		result.Moved++
		return nil
	}

	title := outcome.title
	if title == "" {
		base := filepath.Base(outcome.path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	track := models.NewTrack(0, models.ProviderLocal, "", title, outcome.artist, outcome.album, outcome.path)
	if err := e.tracks.Create(track); err != nil {
		return err
	}

	result.Added++
	return nil
}

// relocateByProviderID repoints an existing track whose file moved or was
// renamed. Provider ids embedded in the container identify the track across
// path changes; a container that cannot be read simply has no ids to match.
func (e *Engine) relocateByProviderID(path string) (bool, error) {
	ts, err := e.adapter.Read(path)
	if err != nil {
		return false, nil
	}

	for provider, pid := range ts.ProviderIDs {
		track, err := e.tracks.GetByProviderID(provider, pid)
		if errors.Is(err, shared.ErrTrackNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}

		e.logger.Info("relocating moved file", "track", track.ID(), "from", track.Path(), "to", path)
		track.SetPath(path)
		if err := e.tracks.Update(track); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// discoverFiles walks root collecting audio files. With no extension filter,
// any container the codec layer supports qualifies.
func discoverFiles(root string, extensions []string) ([]string, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if len(allowed) > 0 {
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !allowed[ext] {
				return nil
			}
		} else if !codec.IsSupported(path) {
			return nil
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}
