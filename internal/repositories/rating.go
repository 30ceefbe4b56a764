package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ferrovax/crate/internal/models"
	"github.com/ferrovax/crate/internal/shared"
)

// RatingRepository implements models.Repository[*models.Rating].
type RatingRepository struct {
	db *sql.DB
}

// NewRatingRepository creates a new RatingRepository with the given database connection
func NewRatingRepository(db *sql.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

const ratingColumns = "id, track_id, value, source, rated_at, created_at, updated_at"

// Create inserts a new [models.Rating] into the database with a generated ID
func (r *RatingRepository) Create(rating *models.Rating) error {
	id := shared.GenerateID()
	rating.SetID(id)

	if err := rating.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO ratings (id, track_id, value, source, rated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, id, rating.TrackID(), rating.Value(), rating.Source().String(), rating.RatedAt(), rating.CreatedAt(), rating.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert rating: %w", err)
	}

	return nil
}

// Get retrieves a rating by ID
func (r *RatingRepository) Get(id string) (*models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE id = ?`
	return scanRating(r.db.QueryRow(query, id))
}

// GetByTrack retrieves the rating a given source owns on a track, or nil if none exists
func (r *RatingRepository) GetByTrack(trackID string, source models.Source) (*models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE track_id = ? AND source = ?`
	rating, err := scanRating(r.db.QueryRow(query, trackID, source.String()))
	if err == errRatingNotFound {
		return nil, nil
	}
	return rating, err
}

// Update modifies an existing rating's value and timestamp
func (r *RatingRepository) Update(rating *models.Rating) error {
	if err := rating.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	rating.SetUpdatedAt(now)
	rating.SetRatedAt(float64(now.UnixNano()) / 1e9)

	result, err := r.db.Exec("UPDATE ratings SET value = ?, rated_at = ?, updated_at = ? WHERE id = ?",
		rating.Value(), rating.RatedAt(), now, rating.ID())
	if err != nil {
		return fmt.Errorf("failed to update rating: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rating not found: %s", rating.ID())
	}

	return nil
}

// Delete removes a rating by ID
func (r *RatingRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM ratings WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rating: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("rating not found: %s", id)
	}

	return nil
}

// List retrieves all ratings matching the given criteria
func (r *RatingRepository) List(criteria map[string]any) ([]*models.Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE 1=1`

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
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var ratings []*models.Rating
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ratings, nil
}

// ListByTrack retrieves all ratings on one track across sources
func (r *RatingRepository) ListByTrack(trackID string) ([]*models.Rating, error) {
	return r.List(map[string]any{"track_id": trackID})
}

// InsertStatement builds a deferred insert for a pass commit
func (r *RatingRepository) InsertStatement(rating *models.Rating) Statement {
	return Statement{
		Query: "INSERT INTO ratings (id, track_id, value, source, rated_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		Args:  []any{shared.GenerateID(), rating.TrackID(), rating.Value(), rating.Source().String(), rating.RatedAt(), rating.CreatedAt(), rating.UpdatedAt()},
	}
}

// UpdateValueStatement builds a deferred value update for a pass commit,
// keyed by (track, source) so only the import-owned row can change.
func (r *RatingRepository) UpdateValueStatement(trackID string, source models.Source, value int) Statement {
	now := time.Now()
	return Statement{
		Query: "UPDATE ratings SET value = ?, rated_at = ?, updated_at = ? WHERE track_id = ? AND source = ?",
		Args:  []any{value, float64(now.UnixNano()) / 1e9, now, trackID, source.String()},
	}
}

// DeleteStatement builds a deferred delete for a pass commit
func (r *RatingRepository) DeleteStatement(trackID string, source models.Source) Statement {
	return Statement{
		Query: "DELETE FROM ratings WHERE track_id = ? AND source = ?",
		Args:  []any{trackID, source.String()},
	}
}

var errRatingNotFound = fmt.Errorf("rating not found")

func scanRating(row scanner) (*models.Rating, error) {
	var (
		id        string
		trackID   string
		value     int
		source    string
		ratedAt   float64
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(&id, &trackID, &value, &source, &ratedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, errRatingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rating: %w", err)
	}

	rating := models.NewRating(trackID, value, models.Source(source))
	rating.SetID(id)
	rating.SetRatedAt(ratedAt)
	rating.SetCreatedAt(createdAt)
	rating.SetUpdatedAt(updatedAt)

	return rating, nil
}
