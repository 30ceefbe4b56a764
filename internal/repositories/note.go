package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/shared"
)

// NoteRepository implements models.Repository[*models.Note].
type NoteRepository struct {
	db *sql.DB
}

// NewNoteRepository creates a new NoteRepository with the given database connection
func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

const noteColumns = "id, track_id, body, source, created_at, updated_at"

// Create inserts a new [models.Note] into the database with a generated ID
func (r *NoteRepository) Create(note *models.Note) error {
	id := shared.GenerateID()
	note.SetID(id)

	if err := note.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO notes (id, track_id, body, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, id, note.TrackID(), note.Body(), note.Source().String(), note.CreatedAt(), note.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}

	return nil
}

// Get retrieves a note by ID
func (r *NoteRepository) Get(id string) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = ?`
	return scanNote(r.db.QueryRow(query, id))
}

// GetByTrack retrieves the note a given source owns on a track, or nil if none exists
func (r *NoteRepository) GetByTrack(trackID string, source models.Source) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE track_id = ? AND source = ?`
	note, err := scanNote(r.db.QueryRow(query, trackID, source.String()))
	if err == errNoteNotFound {
		return nil, nil
	}
	return note, err
}

// Update modifies an existing note's body
func (r *NoteRepository) Update(note *models.Note) error {
	if err := note.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	note.SetUpdatedAt(now)

	result, err := r.db.Exec("UPDATE notes SET body = ?, updated_at = ? WHERE id = ?", note.Body(), now, note.ID())
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("note not found: %s", note.ID())
	}

	return nil
}

// Delete removes a note by ID
func (r *NoteRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM notes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("note not found: %s", id)
	}

	return nil
}

// List retrieves all notes matching the given criteria
func (r *NoteRepository) List(criteria map[string]any) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE 1=1`

	args := []any{}

	if trackID, ok := criteria["track_id"].(string); ok && trackID != "" {
		query += " AND track_id = ?"
		args = append(args, trackID)
	}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return notes, nil
}

// ListByTrack retrieves all notes on one track across sources
func (r *NoteRepository) ListByTrack(trackID string) ([]*models.Note, error) {
	return r.List(map[string]any{"track_id": trackID})
}

// InsertStatement builds a deferred insert for a pass commit
func (r *NoteRepository) InsertStatement(note *models.Note) Statement {
	return Statement{
		Query: "INSERT INTO notes (id, track_id, body, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		Args:  []any{shared.GenerateID(), note.TrackID(), note.Body(), note.Source().String(), note.CreatedAt(), note.UpdatedAt()},
	}
}

// UpdateBodyStatement builds a deferred body update for a pass commit,
// keyed by (track, source) so only the import-owned row can change.
func (r *NoteRepository) UpdateBodyStatement(trackID string, source models.Source, body string) Statement {
	return Statement{
		Query: "UPDATE notes SET body = ?, updated_at = ? WHERE track_id = ? AND source = ?",
		Args:  []any{body, time.Now(), trackID, source.String()},
	}
}

// DeleteStatement builds a deferred delete for a pass commit
func (r *NoteRepository) DeleteStatement(trackID string, source models.Source) Statement {
	return Statement{
		Query: "DELETE FROM notes WHERE track_id = ? AND source = ?",
		Args:  []any{trackID, source.String()},
	}
}

var errNoteNotFound = fmt.Errorf("note not found")

func scanNote(row scanner) (*models.Note, error) {
	var (
		id        string
		trackID   string
		body      string
		source    string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &trackID, &body, &source, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, errNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan note: %w", err)
	}

	note := models.NewNote(trackID, body)
	note.SetID(id)
	note.SetSource(models.Source(source))
	note.SetCreatedAt(createdAt)
	note.SetUpdatedAt(updatedAt)

	return note, nil
}
