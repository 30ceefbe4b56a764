package models

import (
	"fmt"
	"time"
)

// Note is a free-text annotation on a track. Notes are always user-owned;
// the import path never creates or mutates one with a non-user source.
type Note struct {
	id        string
	trackID   string
	body      string
	source    Source
	createdAt time.Time
	updatedAt time.Time
}

// NewNote creates a user-owned Note.
func NewNote(trackID, body string) *Note {
	now := time.Now()
	return &Note{
		trackID:   trackID,
		body:      body,
		source:    SourceUser,
		createdAt: now,
		updatedAt: now,
	}
}

func (n *Note) ID() string { return n.id }

func (n *Note) TrackID() string { return n.trackID }

func (n *Note) Body() string { return n.body }

func (n *Note) Source() Source { return n.source }

func (n *Note) CreatedAt() time.Time { return n.createdAt }

func (n *Note) UpdatedAt() time.Time { return n.updatedAt }

func (n *Note) SetID(id string) { n.id = id }

func (n *Note) SetBody(body string) { n.body = body }

func (n *Note) SetSource(source Source) { n.source = source }

func (n *Note) SetCreatedAt(ts time.Time) { n.createdAt = ts }

func (n *Note) SetUpdatedAt(ts time.Time) { n.updatedAt = ts }

// Validate checks if the note's data is valid.
func (n *Note) Validate() error {
	if n.trackID == "" {
		return fmt.Errorf("note track id is required")
	}
	if n.source.IsZero() {
		return fmt.Errorf("note source is required")
	}
	return nil
}
