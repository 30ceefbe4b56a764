package sync

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ferrovax/crate/internal/codec"
	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/repositories"
	"github.com/ferrovax/crate/internal/shared"
)

const defaultFailureListCap = 25

// Engine drives sync passes between the judgment database and the tag
// containers on disk. One Engine guards one database; passes are serialized
// through its lease and any overlapping invocation fails fast with
// shared.ErrPassActive.
type Engine struct {
	db      *sql.DB
	tracks  *repositories.TrackRepository
	tags    *repositories.TagRepository
	notes   *repositories.NoteRepository
	ratings *repositories.RatingRepository

	adapter codec.Adapter
	logger  *log.Logger
	lease   *Lease

	importSource models.Source
	failureCap   int
}

// NewEngine creates an Engine over an open database. failureCap bounds the
// per-pass failure detail list; zero or negative selects the default.
func NewEngine(db *sql.DB, adapter codec.Adapter, logger *log.Logger, failureCap int) *Engine {
	if failureCap <= 0 {
		failureCap = defaultFailureListCap
	}
	return &Engine{
		db:           db,
		tracks:       repositories.NewTrackRepository(db),
		tags:         repositories.NewTagRepository(db),
		notes:        repositories.NewNoteRepository(db),
		ratings:      repositories.NewRatingRepository(db),
		adapter:      adapter,
		logger:       shared.WithLogger(logger, "component", "sync"),
		lease:        NewLease(db),
		importSource: models.SourceFile,
		failureCap:   failureCap,
	}
}

// ExportOptions selects what an export pass covers. An empty TrackIDs means
// every track with a local file and at least one judgment.
type ExportOptions struct {
	TrackIDs []string
	Progress chan<- ProgressUpdate
}

// ImportOptions selects what an import pass covers. Full bypasses change
// detection and re-reads every tracked file.
type ImportOptions struct {
	TrackIDs []string
	Full     bool
	Progress chan<- ProgressUpdate
}

// Export projects database judgments into the tag containers of selected
// tracks. Each container is rewritten atomically; per-file failures are
// counted and skipped. Sync bookkeeping for all written tracks is committed
// in a single transaction at the end of the pass.
//
// Cancellation is honored at track boundaries: files already rewritten get
// their bookkeeping committed so they are not re-exported next pass.
func (e *Engine) Export(ctx context.Context, opts ExportOptions) (*ExportResult, error) {
	release, err := e.lease.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	tracks, err := e.selectExportTracks(opts.TrackIDs)
	if err != nil {
		return nil, err
	}

	result := &ExportResult{Total: len(tracks)}
	ws := repositories.NewWriteSet()
	stride := progressStride(len(tracks))
	now := epochNow()

	e.lease.setPhase(PhaseWriting)
	e.logger.Info("export pass started", "tracks", len(tracks))

	for i, track := range tracks {
		if ctx.Err() != nil {
			result.Interrupted = true
			e.logger.Warn("export interrupted, committing partial pass", "processed", i, "total", len(tracks))
			break
		}

		if err := e.exportTrack(track, ws, now, result); err != nil {
			e.lease.setPhase(PhaseFailed)
			return nil, err
		}

		if (i+1)%stride == 0 || i+1 == len(tracks) {
			sendProgress(opts.Progress, trackUpdate(PhaseWriting, i+1, len(tracks)))
		}
	}

	if err := ws.Commit(ctx, e.db); err != nil {
		e.lease.setPhase(PhaseFailed)
		sendProgress(opts.Progress, phaseUpdate(PhaseFailed, len(tracks), "commit failed"))
		return nil, err
	}

	e.lease.setPhase(PhaseCommitted)
	sendProgress(opts.Progress, phaseUpdate(PhaseCommitted, len(tracks), "export committed"))
	e.logger.Info("export pass committed",
		"written", result.Written, "skipped", result.Skipped,
		"failed", result.Failed, "missing", result.Missing)

	return result, nil
}

// exportTrack rewrites one container. Codec and filesystem problems are
// recorded on the result and skipped; only datastore errors propagate.
func (e *Engine) exportTrack(track *models.Track, ws *repositories.WriteSet, now float64, result *ExportResult) error {
	if !track.HasLocalFile() {
		result.Failed++
		result.Failures = e.appendFailure(result.Failures, TrackFailure{
			TrackID: track.ID(), Reason: shared.ErrNoLocalFile.Error(),
		})
		return nil
	}

	tags, err := e.tags.ListByTrack(track.ID())
	if err != nil {
		return err
	}
	notes, err := e.notes.ListByTrack(track.ID())
	if err != nil {
		return err
	}
	ratings, err := e.ratings.ListByTrack(track.ID())
	if err != nil {
		return err
	}

	onDisk, err := codec.MtimeOf(track.Path())
	if err != nil {
		result.Missing++
		result.Failures = e.appendFailure(result.Failures, TrackFailure{
			TrackID: track.ID(), Path: track.Path(), Reason: shared.ErrFileMissing.Error(),
		})
		return nil
	}

	if canSkipExport(track, onDisk, tags, notes, ratings) {
		result.Skipped++
		return nil
	}

	mtime, err := codec.AtomicUpdate(e.adapter, track.Path(), func(ts *codec.TagSet) error {
		projectJudgments(ts, track, tags, notes, ratings)
		return nil
	})
	if err != nil {
		e.logger.Warn("skipping track after write failure",
			"track", track.ID(), "path", track.Path(), "err", err)
		result.Failed++
		result.Failures = e.appendFailure(result.Failures, TrackFailure{
			TrackID: track.ID(), Path: track.Path(), Reason: err.Error(),
		})
		return nil
	}

	ws.Add(e.tracks.SyncStateStatement(track.ID(), mtime, now))
	result.Written++
	return nil
}

// canSkipExport reports whether a container is already current: the file is
// unchanged since the last pass and no judgment was touched after it.
func canSkipExport(track *models.Track, onDisk float64, tags []*models.Tag, notes []*models.Note, ratings []*models.Rating) bool {
	stored := track.FileMtime()
	synced := track.LastSyncedAt()
	if stored == nil || synced == nil || *stored != onDisk {
		return false
	}

	cutoff := time.Unix(0, int64(*synced*1e9))
	for _, tag := range tags {
		if tag.UpdatedAt().After(cutoff) {
			return false
		}
	}
	for _, note := range notes {
		if note.UpdatedAt().After(cutoff) {
			return false
		}
	}
	for _, rating := range ratings {
		if rating.UpdatedAt().After(cutoff) {
			return false
		}
	}
	return true
}

// projectJudgments composes the outgoing tag set. Labels mirror the database
// across all sources. The comment body prefers the user's note, then the
// file-sourced one; with no note at all, whatever the container already says
// is preserved. Non-crate properties are never touched here.
func projectJudgments(ts *codec.TagSet, track *models.Track, tags []*models.Tag, notes []*models.Note, ratings []*models.Rating) {
	labels := make([]string, 0, len(tags))
	for _, tag := range tags {
		labels = append(labels, tag.Label())
	}
	ts.SetLabels(labels)

	if body, ok := noteBody(notes); ok {
		ts.Comment = body
	}
	if value, ok := effectiveRating(ratings); ok {
		ts.Rating = value
	}

	if track.Provider() != models.ProviderLocal && track.ProviderID() != "" {
		ts.ProviderIDs[track.Provider()] = track.ProviderID()
	}
}

func noteBody(notes []*models.Note) (string, bool) {
	var fallback *models.Note
	for _, note := range notes {
		if note.Source() == models.SourceUser {
			return note.Body(), true
		}
		if fallback == nil || note.UpdatedAt().After(fallback.UpdatedAt()) {
			fallback = note
		}
	}
	if fallback != nil {
		return fallback.Body(), true
	}
	return "", false
}

// effectiveRating picks one value to publish when several sources rated the
// same track: the user wins, then AI, then providers, with the file's own
// previous rating last. Ties within a tier go to the most recent.
func effectiveRating(ratings []*models.Rating) (int, bool) {
	tier := func(s models.Source) int {
		switch s {
		case models.SourceUser:
			return 0
		case models.SourceAI:
			return 1
		case models.SourceFile:
			return 3
		default:
			return 2
		}
	}

	var best *models.Rating
	for _, rating := range ratings {
		if best == nil {
			best = rating
			continue
		}
		bt, rt := tier(best.Source()), tier(rating.Source())
		if rt < bt || (rt == bt && rating.RatedAt() > best.RatedAt()) {
			best = rating
		}
	}
	if best == nil {
		return 0, false
	}
	return best.Value(), true
}

// Import reconciles tag containers back into the database. Change detection
// limits the pass to files whose mtime moved since the last pass unless Full
// is set. Every record mutation and all sync bookkeeping commit in a single
// transaction; a pass either lands atomically or not at all, except under
// cancellation where work completed so far is committed.
func (e *Engine) Import(ctx context.Context, opts ImportOptions) (*ImportResult, error) {
	release, err := e.lease.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	tracks, err := e.selectImportTracks(opts.TrackIDs)
	if err != nil {
		return nil, err
	}

	changes := Detect(EntriesFor(tracks), opts.Full)
	result := &ImportResult{
		Total:     len(changes.Changed),
		Unchanged: len(changes.Unchanged),
		Missing:   len(changes.Missing),
	}
	for _, entry := range changes.Missing {
		// Missing files never delete judgments; the row waits for the file
		// to come back or for the user to prune it.
		e.logger.Debug("tracked file missing from disk", "track", entry.TrackID, "path", entry.Path)
	}

	ws := repositories.NewWriteSet()
	stride := progressStride(len(changes.Changed))
	var stamps []syncStamp

	e.lease.setPhase(PhaseReconciling)
	e.logger.Info("import pass started",
		"changed", len(changes.Changed), "unchanged", len(changes.Unchanged),
		"missing", len(changes.Missing), "full", opts.Full)

	for i, entry := range changes.Changed {
		if ctx.Err() != nil {
			result.Interrupted = true
			e.logger.Warn("import interrupted, committing partial pass", "processed", i, "total", len(changes.Changed))
			break
		}

		if err := e.importEntry(entry, ws, &stamps, result); err != nil {
			e.lease.setPhase(PhaseFailed)
			return nil, err
		}

		if (i+1)%stride == 0 || i+1 == len(changes.Changed) {
			sendProgress(opts.Progress, trackUpdate(PhaseReconciling, i+1, len(changes.Changed)))
		}
	}

	// last_synced_at must postdate every created_at/updated_at captured on
	// the record statements above, or a clean import would immediately read
	// as pending export.
	now := epochNow()
	for _, stamp := range stamps {
		ws.Add(e.tracks.SyncStateStatement(stamp.trackID, stamp.mtime, now))
	}

	e.lease.setPhase(PhaseWriting)
	if err := ws.Commit(ctx, e.db); err != nil {
		e.lease.setPhase(PhaseFailed)
		sendProgress(opts.Progress, phaseUpdate(PhaseFailed, len(changes.Changed), "commit failed"))
		return nil, err
	}

	e.lease.setPhase(PhaseCommitted)
	sendProgress(opts.Progress, phaseUpdate(PhaseCommitted, len(changes.Changed), "import committed"))
	e.logger.Info("import pass committed",
		"imported", result.Imported, "updated", result.Updated, "deleted", result.Deleted,
		"conflicts", result.Conflicts, "failed", result.Failed)

	return result, nil
}

// syncStamp is a track's change-detection baseline held back until the end
// of the pass, when the shared last_synced_at is taken.
type syncStamp struct {
	trackID string
	mtime   float64
}

// importEntry reconciles one changed file. A container read failure skips
// the track without touching its baseline, so it is retried next pass.
func (e *Engine) importEntry(entry FileEntry, ws *repositories.WriteSet, stamps *[]syncStamp, result *ImportResult) error {
	ts, err := e.adapter.Read(entry.Path)
	if err != nil {
		e.logger.Warn("skipping track after read failure",
			"track", entry.TrackID, "path", entry.Path, "err", err)
		result.Failed++
		result.Failures = e.appendFailure(result.Failures, TrackFailure{
			TrackID: entry.TrackID, Path: entry.Path, Reason: err.Error(),
		})
		return nil
	}

	existing, err := e.existingRecords(entry.TrackID)
	if err != nil {
		return err
	}

	res := Reconcile(existing, incomingRecords(ts), e.importSource)

	for _, c := range res.Conflicts {
		result.Conflicts++
		e.logger.Warn("import conflict, keeping protected record",
			"track", entry.TrackID, "kind", c.Existing.Kind.String(), "key", c.Existing.Key,
			"owner", c.Existing.Source.String(), "have", c.Existing.Value, "incoming", c.Incoming.Value)
	}

	ws.AddAll(e.resolutionStatements(entry.TrackID, res))
	*stamps = append(*stamps, syncStamp{trackID: entry.TrackID, mtime: entry.ObservedMtime})

	result.Imported += len(res.Inserts)
	result.Updated += len(res.Updates)
	result.Deleted += len(res.Deletes)
	return nil
}

// existingRecords flattens a track's judgments into resolver input.
func (e *Engine) existingRecords(trackID string) ([]OwnedRecord, error) {
	tags, err := e.tags.ListByTrack(trackID)
	if err != nil {
		return nil, err
	}
	notes, err := e.notes.ListByTrack(trackID)
	if err != nil {
		return nil, err
	}
	ratings, err := e.ratings.ListByTrack(trackID)
	if err != nil {
		return nil, err
	}

	records := make([]OwnedRecord, 0, len(tags)+len(notes)+len(ratings))
	for _, tag := range tags {
		records = append(records, OwnedRecord{Kind: RecordTag, Key: tag.Label(), Value: tag.Label(), Source: tag.Source()})
	}
	for _, note := range notes {
		records = append(records, OwnedRecord{Kind: RecordNote, Key: "note", Value: note.Body(), Source: note.Source()})
	}
	for _, rating := range ratings {
		records = append(records, OwnedRecord{Kind: RecordRating, Key: "rating", Value: strconv.Itoa(rating.Value()), Source: rating.Source()})
	}
	return records, nil
}

// incomingRecords flattens a decoded tag set into resolver input. Absent
// values produce no record at all, which is what lets the resolver treat
// absence as a delete signal for import-owned rows.
func incomingRecords(ts *codec.TagSet) []OwnedRecord {
	records := make([]OwnedRecord, 0, len(ts.Labels)+2)
	for _, label := range ts.Labels {
		records = append(records, OwnedRecord{Kind: RecordTag, Key: label, Value: label})
	}
	if ts.Comment != "" {
		records = append(records, OwnedRecord{Kind: RecordNote, Key: "note", Value: ts.Comment})
	}
	if ts.Rating != codec.RatingUnset {
		records = append(records, OwnedRecord{Kind: RecordRating, Key: "rating", Value: strconv.Itoa(ts.Rating)})
	}
	return records
}

// resolutionStatements lowers a resolution into deferred SQL for the pass
// write set. Tag updates cannot occur since a tag's key is its value.
func (e *Engine) resolutionStatements(trackID string, res Resolution) []repositories.Statement {
	stmts := make([]repositories.Statement, 0, len(res.Inserts)+len(res.Updates)+len(res.Deletes))

	for _, rec := range res.Inserts {
		switch rec.Kind {
		case RecordTag:
			stmts = append(stmts, e.tags.InsertStatement(models.NewTag(trackID, rec.Key, rec.Source)))
		case RecordNote:
			note := models.NewNote(trackID, rec.Value)
			note.SetSource(rec.Source)
			stmts = append(stmts, e.notes.InsertStatement(note))
		case RecordRating:
			value, _ := strconv.Atoi(rec.Value)
			stmts = append(stmts, e.ratings.InsertStatement(models.NewRating(trackID, value, rec.Source)))
		}
	}

	for _, rec := range res.Updates {
		switch rec.Kind {
		case RecordNote:
			stmts = append(stmts, e.notes.UpdateBodyStatement(trackID, rec.Source, rec.Value))
		case RecordRating:
			value, _ := strconv.Atoi(rec.Value)
			stmts = append(stmts, e.ratings.UpdateValueStatement(trackID, rec.Source, value))
		}
	}

	for _, rec := range res.Deletes {
		switch rec.Kind {
		case RecordTag:
			stmts = append(stmts, e.tags.DeleteStatement(trackID, rec.Key, rec.Source))
		case RecordNote:
			stmts = append(stmts, e.notes.DeleteStatement(trackID, rec.Source))
		case RecordRating:
			stmts = append(stmts, e.ratings.DeleteStatement(trackID, rec.Source))
		}
	}

	return stmts
}

// Status reports sync state without taking the pass lease, so it works while
// a pass is running.
func (e *Engine) Status() (*StatusReport, error) {
	tracks, err := e.tracks.List(map[string]any{})
	if err != nil {
		return nil, err
	}
	withFiles, err := e.tracks.ListWithFiles()
	if err != nil {
		return nil, err
	}
	pendingExport, err := e.tracks.CountPendingExport()
	if err != nil {
		return nil, err
	}
	lastSync, err := e.tracks.LastSyncAt()
	if err != nil {
		return nil, err
	}

	changes := Detect(EntriesFor(withFiles), false)

	// A pass may be running in another crate process against this database;
	// the lease row sees it where the local state cannot.
	active := e.lease.Active()
	if !active {
		held, err := e.lease.Held()
		if err != nil {
			return nil, err
		}
		active = held
	}

	return &StatusReport{
		Tracks:        len(tracks),
		WithFiles:     len(withFiles),
		PendingExport: pendingExport,
		PendingImport: len(changes.Changed),
		MissingFiles:  len(changes.Missing),
		LastSyncAt:    lastSync,
		Active:        active,
		Phase:         e.lease.Phase(),
	}, nil
}

func (e *Engine) selectExportTracks(ids []string) ([]*models.Track, error) {
	if len(ids) == 0 {
		return e.tracks.ListForExport()
	}
	return e.tracksByID(ids)
}

func (e *Engine) selectImportTracks(ids []string) ([]*models.Track, error) {
	if len(ids) == 0 {
		return e.tracks.ListWithFiles()
	}
	return e.tracksByID(ids)
}

func (e *Engine) tracksByID(ids []string) ([]*models.Track, error) {
	tracks := make([]*models.Track, 0, len(ids))
	for _, id := range ids {
		track, err := e.tracks.Get(id)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func (e *Engine) appendFailure(list []TrackFailure, failure TrackFailure) []TrackFailure {
	if len(list) >= e.failureCap {
		return list
	}
	return append(list, failure)
}

func epochNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
