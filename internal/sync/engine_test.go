package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ferrovax/crate/internal/codec"
	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/repositories"
	"github.com/ferrovax/crate/internal/shared"
	crtest "github.com/ferrovax/crate/internal/testing"
)

type testEnv struct {
	engine  *Engine
	adapter *crtest.FakeAdapter
	db      *sql.DB
	tracks  *repositories.TrackRepository
	tags    *repositories.TagRepository
	notes   *repositories.NoteRepository
	ratings *repositories.RatingRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := crtest.SetupTestDB(t)
	adapter := crtest.NewFakeAdapter()
	return &testEnv{
		engine:  NewEngine(db, adapter, shared.NewLogger(io.Discard), 10),
		adapter: adapter,
		db:      db,
		tracks:  repositories.NewTrackRepository(db),
		tags:    repositories.NewTagRepository(db),
		notes:   repositories.NewNoteRepository(db),
		ratings: repositories.NewRatingRepository(db),
	}
}

// addTrack registers a local track and seeds its fake container on disk.
func (env *testEnv) addTrack(t *testing.T, dir, name string, ts *codec.TagSet) *models.Track {
	t.Helper()

	path := filepath.Join(dir, name)
	if ts != nil {
		crtest.WriteContainer(t, path, ts)
	}

	track := models.NewTrack(0, models.ProviderLocal, "", "Test Track", "Test Artist", "Test Album", path)
	if err := env.tracks.Create(track); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return track
}

func (env *testEnv) reload(t *testing.T, id string) *models.Track {
	t.Helper()

	track, err := env.tracks.Get(id)
	if err != nil {
		t.Fatalf("failed to reload track: %v", err)
	}
	return track
}

func (env *testEnv) rate(t *testing.T, trackID string, value int, source models.Source) {
	t.Helper()
	if err := env.ratings.Create(models.NewRating(trackID, value, source)); err != nil {
		t.Fatalf("failed to create rating: %v", err)
	}
}

func (env *testEnv) tag(t *testing.T, trackID, label string, source models.Source) {
	t.Helper()
	if err := env.tags.Create(models.NewTag(trackID, label, source)); err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()

	t.Run("writes judgments and records the post-write baseline", func(t *testing.T) {
		env := newTestEnv(t)
		dir := t.TempDir()
		seed := codec.NewTagSet()
		seed.Comment = "Old note"
		track := env.addTrack(t, dir, "a.mp3", seed)
		env.rate(t, track.ID(), 83, models.SourceUser)
		env.tag(t, track.ID(), "house", models.SourceUser)

		result, err := env.engine.Export(ctx, ExportOptions{})
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if result.Written != 1 || result.Failed != 0 {
			t.Fatalf("result = %+v", result)
		}

		ts := crtest.ReadContainer(t, track.Path())
		if ts.Rating != 83 {
			t.Errorf("file rating = %d, want 83", ts.Rating)
		}
		if ts.Comment != "Old note" {
			t.Errorf("file comment = %q, a missing note must preserve it", ts.Comment)
		}
		if len(ts.Labels) != 1 || ts.Labels[0] != "house" {
			t.Errorf("file labels = %v", ts.Labels)
		}

		reloaded := env.reload(t, track.ID())
		onDisk, err := codec.MtimeOf(track.Path())
		if err != nil {
			t.Fatalf("failed to stat: %v", err)
		}
		if reloaded.FileMtime() == nil || *reloaded.FileMtime() != onDisk {
			t.Errorf("stored mtime %v does not match post-write stat %v", reloaded.FileMtime(), onDisk)
		}
		if reloaded.LastSyncedAt() == nil {
			t.Error("last synced timestamp not recorded")
		}
	})

	t.Run("second pass with no edits skips everything", func(t *testing.T) {
		env := newTestEnv(t)
		track := env.addTrack(t, t.TempDir(), "a.mp3", codec.NewTagSet())
		env.rate(t, track.ID(), 83, models.SourceUser)

		if _, err := env.engine.Export(ctx, ExportOptions{}); err != nil {
			t.Fatalf("first export failed: %v", err)
		}
		result, err := env.engine.Export(ctx, ExportOptions{})
		if err != nil {
			t.Fatalf("second export failed: %v", err)
		}

		if result.Skipped != 1 || result.Written != 0 {
			t.Errorf("idempotent re-export should skip, got %+v", result)
		}
	})

	t.Run("judgment edit forces a rewrite of an unchanged file", func(t *testing.T) {
		env := newTestEnv(t)
		track := env.addTrack(t, t.TempDir(), "a.mp3", codec.NewTagSet())
		env.rate(t, track.ID(), 83, models.SourceUser)

		if _, err := env.engine.Export(ctx, ExportOptions{}); err != nil {
			t.Fatalf("first export failed: %v", err)
		}
		env.tag(t, track.ID(), "late-addition", models.SourceUser)

		result, err := env.engine.Export(ctx, ExportOptions{})
		if err != nil {
			t.Fatalf("second export failed: %v", err)
		}
		if result.Written != 1 {
			t.Fatalf("expected rewrite, got %+v", result)
		}
		if ts := crtest.ReadContainer(t, track.Path()); !ts.HasLabel("late-addition") {
			t.Errorf("new tag missing from container: %v", ts.Labels)
		}
	})

	t.Run("user note replaces the file comment", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Comment = "Old note"
		track := env.addTrack(t, t.TempDir(), "a.mp3", seed)
		note := models.NewNote(track.ID(), "My take")
		if err := env.notes.Create(note); err != nil {
			t.Fatalf("failed to create note: %v", err)
		}

		if _, err := env.engine.Export(ctx, ExportOptions{}); err != nil {
			t.Fatalf("export failed: %v", err)
		}

		if ts := crtest.ReadContainer(t, track.Path()); ts.Comment != "My take" {
			t.Errorf("comment = %q, want user note", ts.Comment)
		}
	})

	t.Run("user rating outranks other sources", func(t *testing.T) {
		env := newTestEnv(t)
		track := env.addTrack(t, t.TempDir(), "a.mp3", codec.NewTagSet())
		env.rate(t, track.ID(), 40, models.SourceFile)
		env.rate(t, track.ID(), 55, models.SourceAI)
		env.rate(t, track.ID(), 90, models.SourceUser)

		if _, err := env.engine.Export(ctx, ExportOptions{}); err != nil {
			t.Fatalf("export failed: %v", err)
		}

		if ts := crtest.ReadContainer(t, track.Path()); ts.Rating != 90 {
			t.Errorf("rating = %d, want the user's 90", ts.Rating)
		}
	})

	t.Run("missing file is counted without aborting the pass", func(t *testing.T) {
		env := newTestEnv(t)
		dir := t.TempDir()
		gone := env.addTrack(t, dir, "gone.mp3", nil)
		env.rate(t, gone.ID(), 50, models.SourceUser)
		ok := env.addTrack(t, dir, "ok.mp3", codec.NewTagSet())
		env.rate(t, ok.ID(), 70, models.SourceUser)

		result, err := env.engine.Export(ctx, ExportOptions{})
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if result.Missing != 1 || result.Written != 1 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("corrupt container is skipped while the pass commits", func(t *testing.T) {
		env := newTestEnv(t)
		dir := t.TempDir()
		bad := env.addTrack(t, dir, "bad.mp3", nil)
		if err := os.WriteFile(bad.Path(), []byte("{{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		env.rate(t, bad.ID(), 50, models.SourceUser)
		good := env.addTrack(t, dir, "good.mp3", codec.NewTagSet())
		env.rate(t, good.ID(), 70, models.SourceUser)

		result, err := env.engine.Export(ctx, ExportOptions{})
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if result.Failed != 1 || result.Written != 1 {
			t.Fatalf("result = %+v", result)
		}
		if len(result.Failures) != 1 || result.Failures[0].TrackID != bad.ID() {
			t.Errorf("failures = %+v", result.Failures)
		}

		// The good track's baseline committed despite the sibling failure.
		if env.reload(t, good.ID()).LastSyncedAt() == nil {
			t.Error("surviving track's bookkeeping was not committed")
		}
	})

	t.Run("selection by id limits the pass", func(t *testing.T) {
		env := newTestEnv(t)
		dir := t.TempDir()
		first := env.addTrack(t, dir, "a.mp3", codec.NewTagSet())
		env.rate(t, first.ID(), 10, models.SourceUser)
		second := env.addTrack(t, dir, "b.mp3", codec.NewTagSet())
		env.rate(t, second.ID(), 20, models.SourceUser)

		result, err := env.engine.Export(ctx, ExportOptions{TrackIDs: []string{first.ID()}})
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if result.Total != 1 || result.Written != 1 {
			t.Errorf("result = %+v", result)
		}
		if env.reload(t, second.ID()).LastSyncedAt() != nil {
			t.Error("unselected track was touched")
		}
	})
}

func TestImport(t *testing.T) {
	ctx := context.Background()

	t.Run("imports file judgments with file provenance", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Rating = 83
		seed.Comment = "Old note"
		seed.SetLabels([]string{"house", "deep"})
		track := env.addTrack(t, t.TempDir(), "a.mp3", seed)

		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Imported != 4 || result.Conflicts != 0 {
			t.Fatalf("result = %+v", result)
		}

		rating, err := env.ratings.GetByTrack(track.ID(), models.SourceFile)
		if err != nil || rating == nil || rating.Value() != 83 {
			t.Errorf("rating = %+v, err %v", rating, err)
		}
		note, err := env.notes.GetByTrack(track.ID(), models.SourceFile)
		if err != nil || note == nil || note.Body() != "Old note" {
			t.Errorf("note = %+v, err %v", note, err)
		}
		tags, err := env.tags.ListByTrack(track.ID())
		if err != nil || len(tags) != 2 {
			t.Errorf("tags = %+v, err %v", tags, err)
		}
	})

	t.Run("second pass sees no change", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Rating = 83
		env.addTrack(t, t.TempDir(), "a.mp3", seed)

		if _, err := env.engine.Import(ctx, ImportOptions{}); err != nil {
			t.Fatalf("first import failed: %v", err)
		}
		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("second import failed: %v", err)
		}

		if result.Total != 0 || result.Unchanged != 1 {
			t.Errorf("idempotent re-import should detect nothing, got %+v", result)
		}
	})

	t.Run("never re-imports the engine's own export", func(t *testing.T) {
		env := newTestEnv(t)
		track := env.addTrack(t, t.TempDir(), "a.mp3", codec.NewTagSet())
		env.rate(t, track.ID(), 83, models.SourceUser)

		if _, err := env.engine.Export(ctx, ExportOptions{}); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}

		if result.Total != 0 || result.Unchanged != 1 {
			t.Errorf("own write must read as unchanged, got %+v", result)
		}
	})

	t.Run("protected rating survives a colliding file value", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Rating = 83
		track := env.addTrack(t, t.TempDir(), "a.mp3", seed)
		env.rate(t, track.ID(), 90, models.SourceUser)

		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Conflicts != 1 || result.Imported != 0 {
			t.Fatalf("result = %+v", result)
		}

		rating, err := env.ratings.GetByTrack(track.ID(), models.SourceUser)
		if err != nil || rating == nil || rating.Value() != 90 {
			t.Errorf("user rating was touched: %+v, err %v", rating, err)
		}
	})

	t.Run("updates the file-owned record in place", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Rating = 83
		track := env.addTrack(t, t.TempDir(), "a.mp3", seed)
		env.rate(t, track.ID(), 75, models.SourceFile)

		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Updated != 1 {
			t.Fatalf("result = %+v", result)
		}

		rating, err := env.ratings.GetByTrack(track.ID(), models.SourceFile)
		if err != nil || rating == nil || rating.Value() != 83 {
			t.Errorf("rating = %+v, err %v", rating, err)
		}
	})

	t.Run("deletes only its own absent records", func(t *testing.T) {
		env := newTestEnv(t)
		track := env.addTrack(t, t.TempDir(), "a.mp3", codec.NewTagSet())
		env.tag(t, track.ID(), "chill", models.SourceFile)
		env.tag(t, track.ID(), "favorite", models.SourceUser)

		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Deleted != 1 {
			t.Fatalf("result = %+v", result)
		}

		tags, err := env.tags.ListByTrack(track.ID())
		if err != nil || len(tags) != 1 || tags[0].Label() != "favorite" {
			t.Errorf("tags = %+v, err %v", tags, err)
		}
	})

	t.Run("missing file retains judgments", func(t *testing.T) {
		env := newTestEnv(t)
		track := env.addTrack(t, t.TempDir(), "gone.mp3", nil)
		env.rate(t, track.ID(), 90, models.SourceUser)
		env.tag(t, track.ID(), "favorite", models.SourceFile)

		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Missing != 1 || result.Deleted != 0 {
			t.Fatalf("result = %+v", result)
		}

		if tags, _ := env.tags.ListByTrack(track.ID()); len(tags) != 1 {
			t.Error("judgments on a missing file must survive")
		}
	})

	t.Run("corrupt file is retried next pass", func(t *testing.T) {
		env := newTestEnv(t)
		track := env.addTrack(t, t.TempDir(), "bad.mp3", nil)
		if err := os.WriteFile(track.Path(), []byte("{{not json"), 0644); err != nil {
			t.Fatal(err)
		}

		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Failed != 1 {
			t.Fatalf("result = %+v", result)
		}

		// Baseline untouched, so the next pass picks the file up again.
		if env.reload(t, track.ID()).FileMtime() != nil {
			t.Error("failed track's baseline must not advance")
		}
		again, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("second import failed: %v", err)
		}
		if again.Total != 1 {
			t.Errorf("expected retry, got %+v", again)
		}
	})

	t.Run("failure detail list is capped while counters stay exact", func(t *testing.T) {
		env := newTestEnv(t)
		env.engine.failureCap = 2
		dir := t.TempDir()
		for _, name := range []string{"a.mp3", "b.mp3", "c.mp3"} {
			track := env.addTrack(t, dir, name, nil)
			if err := os.WriteFile(track.Path(), []byte("{{not json"), 0644); err != nil {
				t.Fatal(err)
			}
		}

		result, err := env.engine.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import failed: %v", err)
		}
		if result.Failed != 3 {
			t.Errorf("failed = %d, want 3", result.Failed)
		}
		if len(result.Failures) != 2 {
			t.Errorf("failure list = %d entries, want cap of 2", len(result.Failures))
		}
	})

	t.Run("full rescan bypasses change detection", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Rating = 83
		env.addTrack(t, t.TempDir(), "a.mp3", seed)

		if _, err := env.engine.Import(ctx, ImportOptions{}); err != nil {
			t.Fatalf("first import failed: %v", err)
		}
		result, err := env.engine.Import(ctx, ImportOptions{Full: true})
		if err != nil {
			t.Fatalf("full import failed: %v", err)
		}
		if result.Total != 1 {
			t.Errorf("full rescan should revisit the file, got %+v", result)
		}
	})

	t.Run("cancellation stops at a track boundary", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Rating = 83
		env.addTrack(t, t.TempDir(), "a.mp3", seed)

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		result, err := env.engine.Import(canceled, ImportOptions{})
		if err != nil {
			t.Fatalf("interrupted import failed: %v", err)
		}
		if !result.Interrupted || result.Imported != 0 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("concurrent pass is refused", func(t *testing.T) {
		env := newTestEnv(t)
		release, err := env.engine.lease.Acquire()
		if err != nil {
			t.Fatalf("failed to take lease: %v", err)
		}
		defer release()

		if _, err := env.engine.Import(ctx, ImportOptions{}); !errors.Is(err, shared.ErrPassActive) {
			t.Errorf("expected ErrPassActive, got %v", err)
		}
		if _, err := env.engine.Export(ctx, ExportOptions{}); !errors.Is(err, shared.ErrPassActive) {
			t.Errorf("expected ErrPassActive, got %v", err)
		}
	})

	t.Run("pass over the same database is refused across engines", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Rating = 83
		env.addTrack(t, t.TempDir(), "a.mp3", seed)

		// A second invocation against the same database builds its own
		// engine, so the refusal has to come from the database, not from
		// state shared in memory.
		other := NewEngine(env.db, env.adapter, shared.NewLogger(io.Discard), 10)

		release, err := env.engine.lease.Acquire()
		if err != nil {
			t.Fatalf("failed to take lease: %v", err)
		}
		if _, err := other.Import(ctx, ImportOptions{}); !errors.Is(err, shared.ErrPassActive) {
			t.Errorf("expected ErrPassActive from second engine, got %v", err)
		}
		if _, err := other.Export(ctx, ExportOptions{}); !errors.Is(err, shared.ErrPassActive) {
			t.Errorf("expected ErrPassActive from second engine, got %v", err)
		}

		report, err := other.Status()
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !report.Active {
			t.Error("status should see the other engine's running pass")
		}

		release()
		result, err := other.Import(ctx, ImportOptions{})
		if err != nil {
			t.Fatalf("import after release failed: %v", err)
		}
		if result.Imported == 0 {
			t.Errorf("released lease should let the pass run, got %+v", result)
		}
	})

	t.Run("clean import leaves nothing pending for export", func(t *testing.T) {
		env := newTestEnv(t)
		seed := codec.NewTagSet()
		seed.Rating = 83
		seed.SetLabels([]string{"house"})
		env.addTrack(t, t.TempDir(), "a.mp3", seed)

		if _, err := env.engine.Import(ctx, ImportOptions{}); err != nil {
			t.Fatalf("import failed: %v", err)
		}

		report, err := env.engine.Status()
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if report.PendingExport != 0 {
			t.Errorf("pending export = %d after a clean import, want 0", report.PendingExport)
		}

		result, err := env.engine.Export(ctx, ExportOptions{})
		if err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if result.Written != 0 || result.Skipped != 1 {
			t.Errorf("export after clean import should skip, got %+v", result)
		}
	})
}

func TestProgressReporting(t *testing.T) {
	ctx := context.Background()

	t.Run("large pass reports roughly once per percent", func(t *testing.T) {
		env := newTestEnv(t)
		dir := t.TempDir()
		seed := codec.NewTagSet()
		seed.Rating = 50
		for i := 0; i < 1000; i++ {
			env.addTrack(t, dir, fmt.Sprintf("track_%04d.mp3", i), seed)
		}

		progress := make(chan ProgressUpdate, 1200)
		if _, err := env.engine.Import(ctx, ImportOptions{Progress: progress}); err != nil {
			t.Fatalf("import failed: %v", err)
		}
		close(progress)

		count := 0
		lastPercent := -1
		for update := range progress {
			count++
			if p := update.Percent(); p < lastPercent {
				t.Fatalf("progress went backwards: %d after %d", p, lastPercent)
			} else {
				lastPercent = p
			}
		}
		if count < 99 || count > 101 {
			t.Errorf("update count = %d, want 99..101", count)
		}
	})

	t.Run("tiny pass still reports completion", func(t *testing.T) {
		env := newTestEnv(t)
		dir := t.TempDir()
		seed := codec.NewTagSet()
		seed.Rating = 50
		for i := 0; i < 3; i++ {
			env.addTrack(t, dir, fmt.Sprintf("t%d.mp3", i), seed)
		}

		progress := make(chan ProgressUpdate, 16)
		if _, err := env.engine.Import(ctx, ImportOptions{Progress: progress}); err != nil {
			t.Fatalf("import failed: %v", err)
		}
		close(progress)

		var last ProgressUpdate
		count := 0
		for update := range progress {
			count++
			last = update
		}
		if count == 0 {
			t.Fatal("no progress reported")
		}
		if last.Phase != PhaseCommitted {
			t.Errorf("final update phase = %v, want committed", last.Phase)
		}
	})
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	seed := codec.NewTagSet()
	seed.Rating = 50
	env.addTrack(t, dir, "a.mp3", seed)
	remote := models.NewTrack(0, "spotify", "sp1", "Remote", "Artist", "Album", "")
	if err := env.tracks.Create(remote); err != nil {
		t.Fatalf("failed to create track: %v", err)
	}

	report, err := env.engine.Status()
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}

	if report.Tracks != 2 || report.WithFiles != 1 {
		t.Errorf("report = %+v", report)
	}
	if report.PendingImport != 1 {
		t.Errorf("pending import = %d, want 1 never-synced file", report.PendingImport)
	}
	if report.Active || report.Phase != PhaseIdle {
		t.Errorf("no pass should be active: %+v", report)
	}
	if report.LastSyncAt != nil {
		t.Errorf("last sync should be unset, got %v", report.LastSyncAt)
	}
}
