package models

import (
	"fmt"
	"time"
)

// Track represents one library entry: a piece of music the user curates.
//
// A track may map to zero-or-one physical file via Path. FileMtime holds the
// file's modification time as observed by the engine (epoch seconds with
// sub-second precision) and is the change-detection baseline for imports.
// LastSyncedAt is set once per successful sync pass that touched the track.
type Track struct {
	id           string
	sequence     int
	provider     string
	providerID   string
	title        string
	artist       string
	album        string
	path         string
	fileMtime    *float64
	lastSyncedAt *float64
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

// NewTrack creates a Track for the given provider. Path may be empty for
// tracks with no local file.
func NewTrack(sequence int, provider, providerID, title, artist, album, path string) *Track {
	now := time.Now()
	return &Track{
		sequence:   sequence,
		provider:   provider,
		providerID: providerID,
		title:      title,
		artist:     artist,
		album:      album,
		path:       path,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (t *Track) ID() string { return t.id }

func (t *Track) Sequence() int { return t.sequence }

func (t *Track) Provider() string { return t.provider }

func (t *Track) ProviderID() string { return t.providerID }

func (t *Track) Title() string { return t.title }

func (t *Track) Artist() string { return t.artist }

func (t *Track) Album() string { return t.album }

func (t *Track) Path() string { return t.path }

func (t *Track) FileMtime() *float64 { return t.fileMtime }

func (t *Track) LastSyncedAt() *float64 { return t.lastSyncedAt }

func (t *Track) CreatedAt() time.Time { return t.createdAt }

func (t *Track) UpdatedAt() time.Time { return t.updatedAt }

func (t *Track) DeletedAt() *time.Time { return t.deletedAt }

func (t *Track) SetID(id string) { t.id = id }

func (t *Track) SetSequence(seq int) { t.sequence = seq }

func (t *Track) SetTitle(title string) { t.title = title }

func (t *Track) SetArtist(artist string) { t.artist = artist }

func (t *Track) SetAlbum(album string) { t.album = album }

func (t *Track) SetPath(path string) { t.path = path }

func (t *Track) SetCreatedAt(ts time.Time) { t.createdAt = ts }

func (t *Track) SetUpdatedAt(ts time.Time) { t.updatedAt = ts }

func (t *Track) SetDeletedAt(ts *time.Time) { t.deletedAt = ts }

func (t *Track) SetFileMtime(mtime *float64) { t.fileMtime = mtime }

func (t *Track) SetLastSyncedAt(ts *float64) { t.lastSyncedAt = ts }

// HasLocalFile reports whether the track maps to a physical file.
func (t *Track) HasLocalFile() bool {
	return t.path != ""
}

// Validate checks if the track's data is valid.
func (t *Track) Validate() error {
	if t.provider == "" {
		return fmt.Errorf("track provider is required")
	}
	if t.title == "" && t.path == "" {
		return fmt.Errorf("track needs a title or a local path")
	}
	return nil
}
