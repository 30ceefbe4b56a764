package models

import (
	"fmt"
	"time"
)

// RatingMax is the upper bound of the rating scale. Ratings are stored
// 0-100 so they round-trip losslessly through the three-digit comment
// prefix written into tag containers.
const RatingMax = 100

// Rating is a numeric judgment on a track with an owning source and the
// moment the judgment was made (epoch seconds).
type Rating struct {
	id        string
	trackID   string
	value     int
	source    Source
	ratedAt   float64
	createdAt time.Time
	updatedAt time.Time
}

// NewRating creates a Rating owned by the given source, stamped now.
func NewRating(trackID string, value int, source Source) *Rating {
	now := time.Now()
	return &Rating{
		trackID:   trackID,
		value:     value,
		source:    source,
		ratedAt:   float64(now.UnixNano()) / 1e9,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *Rating) ID() string { return r.id }

func (r *Rating) TrackID() string { return r.trackID }

func (r *Rating) Value() int { return r.value }

func (r *Rating) Source() Source { return r.source }

func (r *Rating) RatedAt() float64 { return r.ratedAt }

func (r *Rating) CreatedAt() time.Time { return r.createdAt }

func (r *Rating) UpdatedAt() time.Time { return r.updatedAt }

func (r *Rating) SetID(id string) { r.id = id }

func (r *Rating) SetValue(value int) { r.value = value }

func (r *Rating) SetSource(source Source) { r.source = source }

func (r *Rating) SetRatedAt(ts float64) { r.ratedAt = ts }

func (r *Rating) SetCreatedAt(ts time.Time) { r.createdAt = ts }

func (r *Rating) SetUpdatedAt(ts time.Time) { r.updatedAt = ts }

// Validate checks if the rating's data is valid.
func (r *Rating) Validate() error {
	if r.trackID == "" {
		return fmt.Errorf("rating track id is required")
	}
	if r.value < 0 || r.value > RatingMax {
		return fmt.Errorf("rating value %d out of range 0-%d", r.value, RatingMax)
	}
	if r.source.IsZero() {
		return fmt.Errorf("rating source is required")
	}
	return nil
}
