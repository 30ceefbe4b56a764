package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/shared"
)

// TrackRepository implements models.Repository[*models.Track].
//
// Besides CRUD it exposes the scoped listings the sync engine needs: tracks
// with local files (import scope) and tracks carrying judgments (export
// scope), plus the sync bookkeeping statement used inside pass commits.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = "id, sequence, provider, provider_id, title, artist, album, path, file_mtime, last_synced_at, created_at, updated_at, deleted_at"

// Create inserts a new [models.Track] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.Track) error {
	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)
	track.SetSequence(sequence)

	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO tracks (id, sequence, provider, provider_id, title, artist, album, path, file_mtime, last_synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		track.Provider(),
		nullString(track.ProviderID()),
		track.Title(),
		track.Artist(),
		track.Album(),
		nullString(track.Path()),
		nullFloat(track.FileMtime()),
		nullFloat(track.LastSyncedAt()),
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	return scanTrack(r.db.QueryRow(query, id))
}

// GetByPath retrieves the track mapped to the given local file path
func (r *TrackRepository) GetByPath(path string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE path = ? AND deleted_at IS NULL`
	return scanTrack(r.db.QueryRow(query, path))
}

// GetByProviderID retrieves a track by provider and provider-assigned id
func (r *TrackRepository) GetByProviderID(provider, providerID string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE provider = ? AND provider_id = ? AND deleted_at IS NULL`
	return scanTrack(r.db.QueryRow(query, provider, providerID))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	query := `
		UPDATE tracks
		SET title = ?, artist = ?, album = ?, path = ?, file_mtime = ?, last_synced_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		track.Title(),
		track.Artist(),
		track.Album(),
		nullString(track.Path()),
		nullFloat(track.FileMtime()),
		nullFloat(track.LastSyncedAt()),
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.ID())
	}

	return nil
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	return nil
}

// List retrieves all tracks matching the given criteria, excluding soft-deleted tracks
func (r *TrackRepository) List(criteria map[string]any) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`

	args := []any{}

	if provider, ok := criteria["provider"].(string); ok && provider != "" {
		query += " AND provider = ?"
		args = append(args, provider)
	}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ?"
		args = append(args, artist)
	}

	if label, ok := criteria["tag"].(string); ok && label != "" {
		query += " AND EXISTS (SELECT 1 FROM tags WHERE track_id = tracks.id AND label = ?)"
		args = append(args, label)
	}

	if min, ok := criteria["min_rating"].(int); ok && min > 0 {
		query += " AND EXISTS (SELECT 1 FROM ratings WHERE track_id = tracks.id AND value >= ?)"
		args = append(args, min)
	}

	query += " ORDER BY sequence ASC"

	return r.queryTracks(query, args...)
}

// ListWithFiles retrieves every track mapped to a local file, the scope of an import pass
func (r *TrackRepository) ListWithFiles() ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL AND path IS NOT NULL ORDER BY sequence ASC`
	return r.queryTracks(query)
}

// ListForExport retrieves tracks with a local file and at least one judgment, the scope of an export pass
func (r *TrackRepository) ListForExport() ([]*models.Track, error) {
	query := `
		SELECT ` + trackColumns + ` FROM tracks t
		WHERE t.deleted_at IS NULL AND t.path IS NOT NULL
		AND (
			EXISTS (SELECT 1 FROM tags WHERE track_id = t.id)
			OR EXISTS (SELECT 1 FROM notes WHERE track_id = t.id)
			OR EXISTS (SELECT 1 FROM ratings WHERE track_id = t.id)
		)
		ORDER BY t.sequence ASC
	`
	return r.queryTracks(query)
}

// CountPendingExport counts tracks whose judgments changed after their last
// sync, or that carry judgments and have never been synced.
func (r *TrackRepository) CountPendingExport() (int, error) {
	query := `
		SELECT COUNT(*) FROM tracks t
		WHERE t.deleted_at IS NULL AND t.path IS NOT NULL
		AND (
			EXISTS (SELECT 1 FROM tags g WHERE g.track_id = t.id AND (t.last_synced_at IS NULL OR julianday(g.updated_at) > julianday(t.last_synced_at, 'unixepoch')))
			OR EXISTS (SELECT 1 FROM notes n WHERE n.track_id = t.id AND (t.last_synced_at IS NULL OR julianday(n.updated_at) > julianday(t.last_synced_at, 'unixepoch')))
			OR EXISTS (SELECT 1 FROM ratings v WHERE v.track_id = t.id AND (t.last_synced_at IS NULL OR julianday(v.updated_at) > julianday(t.last_synced_at, 'unixepoch')))
		)
	`

	var count int
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending exports: %w", err)
	}
	return count, nil
}

// LastSyncAt returns the most recent last_synced_at across the library, or nil if no pass has run.
func (r *TrackRepository) LastSyncAt() (*float64, error) {
	var ts sql.NullFloat64
	if err := r.db.QueryRow("SELECT MAX(last_synced_at) FROM tracks WHERE deleted_at IS NULL").Scan(&ts); err != nil {
		return nil, fmt.Errorf("failed to query last sync time: %w", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Float64, nil
}

// SyncStateStatement builds the per-track bookkeeping mutation committed at
// the end of a pass. The mtime argument must come from the atomic writer's
// post-write stat (export) or the scan-time stat (import), never from a
// value read before the engine's own write.
func (r *TrackRepository) SyncStateStatement(trackID string, fileMtime, syncedAt float64) Statement {
	return Statement{
		Query: "UPDATE tracks SET file_mtime = ?, last_synced_at = ? WHERE id = ?",
		Args:  []any{fileMtime, syncedAt, trackID},
	}
}

func (r *TrackRepository) queryTracks(query string, args ...any) ([]*models.Track, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanner abstracts over [sql.Row] and [sql.Rows]
type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (*models.Track, error) {
	var (
		id           string
		sequence     int
		provider     string
		providerID   sql.NullString
		title        string
		artist       string
		album        string
		path         sql.NullString
		fileMtime    sql.NullFloat64
		lastSyncedAt sql.NullFloat64
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &provider, &providerID, &title, &artist, &album, &path, &fileMtime, &lastSyncedAt, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track := models.NewTrack(sequence, provider, providerID.String, title, artist, album, path.String)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if fileMtime.Valid {
		track.SetFileMtime(&fileMtime.Float64)
	}
	if lastSyncedAt.Valid {
		track.SetLastSyncedAt(&lastSyncedAt.Float64)
	}
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
