package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/shared"
)

// TagRepository implements models.Repository[*models.Tag].
type TagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new TagRepository with the given database connection
func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

const tagColumns = "id, track_id, label, source, created_at, updated_at"

// Create inserts a new [models.Tag] into the database with a generated ID
func (r *TagRepository) Create(tag *models.Tag) error {
	id := shared.GenerateID()
	tag.SetID(id)

	if err := tag.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO tags (id, track_id, label, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, id, tag.TrackID(), tag.Label(), tag.Source().String(), tag.CreatedAt(), tag.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert tag: %w", err)
	}

	return nil
}

// Get retrieves a tag by ID
func (r *TagRepository) Get(id string) (*models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE id = ?`
	return scanTag(r.db.QueryRow(query, id))
}

// Update modifies an existing tag's source
func (r *TagRepository) Update(tag *models.Tag) error {
	if err := tag.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	tag.SetUpdatedAt(now)

	result, err := r.db.Exec("UPDATE tags SET source = ?, updated_at = ? WHERE id = ?", tag.Source().String(), now, tag.ID())
	if err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("tag not found: %s", tag.ID())
	}

	return nil
}

// Delete removes a tag by ID
func (r *TagRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("tag not found: %s", id)
	}

	return nil
}

// DeleteByLabel removes a tag by its (track, label, source) identity
func (r *TagRepository) DeleteByLabel(trackID, label string, source models.Source) error {
	result, err := r.db.Exec("DELETE FROM tags WHERE track_id = ? AND label = ? AND source = ?", trackID, label, source.String())
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("tag not found: %s on track %s", label, trackID)
	}

	return nil
}

// List retrieves all tags matching the given criteria
func (r *TagRepository) List(criteria map[string]any) ([]*models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE 1=1`

	args := []any{}

	if trackID, ok := criteria["track_id"].(string); ok && trackID != "" {
		query += " AND track_id = ?"
		args = append(args, trackID)
	}

	if label, ok := criteria["label"].(string); ok && label != "" {
		query += " AND label = ?"
		args = append(args, label)
	}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source = ?"
		args = append(args, source)
	}

	query += " ORDER BY label ASC, source ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tags, nil
}

// ListByTrack retrieves all tags for one track
func (r *TagRepository) ListByTrack(trackID string) ([]*models.Tag, error) {
	return r.List(map[string]any{"track_id": trackID})
}

// InsertStatement builds a deferred insert for a pass commit
func (r *TagRepository) InsertStatement(tag *models.Tag) Statement {
	return Statement{
		Query: "INSERT INTO tags (id, track_id, label, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		Args:  []any{shared.GenerateID(), tag.TrackID(), tag.Label(), tag.Source().String(), tag.CreatedAt(), tag.UpdatedAt()},
	}
}

// DeleteStatement builds a deferred delete for a pass commit, keyed by the
// tag's full (track, label, source) identity so only the import-owned row
// can be removed.
func (r *TagRepository) DeleteStatement(trackID, label string, source models.Source) Statement {
	return Statement{
		Query: "DELETE FROM tags WHERE track_id = ? AND label = ? AND source = ?",
		Args:  []any{trackID, label, source.String()},
	}
}

func scanTag(row scanner) (*models.Tag, error) {
	var (
		id        string
		trackID   string
		label     string
		source    string
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &trackID, &label, &source, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tag not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tag: %w", err)
	}

	tag := models.NewTag(trackID, label, models.Source(source))
	tag.SetID(id)
	tag.SetCreatedAt(createdAt)
	tag.SetUpdatedAt(updatedAt)

	return tag, nil
}
