package models

import (
	"fmt"
	"strings"
	"time"
)

// Tag is a short label attached to a track.
//
// The same label may exist once per source on a track; uniqueness is
// (track, label, source), never global. The source decides which sync
// direction may remove the row.
type Tag struct {
	id        string
	trackID   string
	label     string
	source    Source
	createdAt time.Time
	updatedAt time.Time
}

// NewTag creates a Tag owned by the given source.
func NewTag(trackID, label string, source Source) *Tag {
	now := time.Now()
	return &Tag{
		trackID:   trackID,
		label:     strings.TrimSpace(label),
		source:    source,
		createdAt: now,
		updatedAt: now,
	}
}

func (t *Tag) ID() string { return t.id }

func (t *Tag) TrackID() string { return t.trackID }

func (t *Tag) Label() string { return t.label }

func (t *Tag) Source() Source { return t.source }

func (t *Tag) CreatedAt() time.Time { return t.createdAt }

func (t *Tag) UpdatedAt() time.Time { return t.updatedAt }

func (t *Tag) SetID(id string) { t.id = id }

func (t *Tag) SetSource(source Source) { t.source = source }

func (t *Tag) SetCreatedAt(ts time.Time) { t.createdAt = ts }

func (t *Tag) SetUpdatedAt(ts time.Time) { t.updatedAt = ts }

// Validate checks if the tag's data is valid.
func (t *Tag) Validate() error {
	if t.trackID == "" {
		return fmt.Errorf("tag track id is required")
	}
	if t.label == "" {
		return fmt.Errorf("tag label is required")
	}
	if t.source.IsZero() {
		return fmt.Errorf("tag source is required")
	}
	return nil
}
