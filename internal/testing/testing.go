// package testing contains shared testing utilities
package testing

import (
	"database/sql"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/ferrovax/crate/internal/codec"
	"github.com/ferrovax/crate/internal/shared"
)

// SetupTestDB creates an in-memory SQLite database with migrations applied
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

// FakeAdapter is a file-backed test double for [codec.Adapter]. It stores a
// TagSet as JSON in the file itself, so the atomic writer's copy-and-rename
// protocol works against it unchanged, and supports fault injection per path.
type FakeAdapter struct {
	FailRead  map[string]error // paths whose Read fails
	FailWrite map[string]error // paths whose Write fails
	Reads     []string         // every path passed to Read
	Writes    []string         // every path passed to Write
}

// NewFakeAdapter creates a FakeAdapter with empty fault maps.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{
		FailRead:  map[string]error{},
		FailWrite: map[string]error{},
	}
}

type fakeContainer struct {
	Comment     string            `json:"comment"`
	Rating      int               `json:"rating"`
	Labels      []string          `json:"labels,omitempty"`
	ProviderIDs map[string]string `json:"provider_ids,omitempty"`
	BPM         int               `json:"bpm,omitempty"`
	Key         string            `json:"key,omitempty"`
}

func (f *FakeAdapter) Read(path string) (*codec.TagSet, error) {
	f.Reads = append(f.Reads, path)
	if err, ok := f.FailRead[path]; ok {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	ts := codec.NewTagSet()
	if len(data) == 0 {
		return ts, nil
	}

	var container fakeContainer
	if err := json.Unmarshal(data, &container); err != nil {
		return nil, &codec.Error{Path: path, Kind: codec.ErrCorrupt, Err: err}
	}

	ts.Comment = container.Comment
	ts.Rating = container.Rating
	ts.SetLabels(container.Labels)
	if container.ProviderIDs != nil {
		ts.ProviderIDs = container.ProviderIDs
	}
	ts.BPM = container.BPM
	ts.Key = container.Key
	return ts, nil
}

func (f *FakeAdapter) Write(path string, ts *codec.TagSet) error {
	f.Writes = append(f.Writes, path)
	if err, ok := f.FailWrite[path]; ok {
		return err
	}

	data, err := json.Marshal(fakeContainer{
		Comment:     ts.Comment,
		Rating:      ts.Rating,
		Labels:      ts.Labels,
		ProviderIDs: ts.ProviderIDs,
		BPM:         ts.BPM,
		Key:         ts.Key,
	})
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// WriteContainer seeds a fake tag container file for a test.
func WriteContainer(t *testing.T, path string, ts *codec.TagSet) {
	t.Helper()

	adapter := NewFakeAdapter()
	if err := adapter.Write(path, ts); err != nil {
		t.Fatalf("failed to seed container %s: %v", path, err)
	}
}

// ReadContainer reads a fake tag container file back for assertions.
func ReadContainer(t *testing.T, path string) *codec.TagSet {
	t.Helper()

	adapter := NewFakeAdapter()
	ts, err := adapter.Read(path)
	if err != nil {
		t.Fatalf("failed to read container %s: %v", path, err)
	}
	return ts
}

// MustReadFile reads a file or fails the test.
func MustReadFile(t *testing.T, path string) []byte {
	t.Helper()

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return content
}

// AssertFileExists fails the test if path does not exist.
func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

// AssertNoTempFiles fails the test if dir contains leftover atomic-writer temp files.
func AssertNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir %s: %v", dir, err)
	}
	for _, entry := range entries {
		if name := entry.Name(); strings.Contains(name, ".crate-") {
			t.Errorf("leftover temp file: %s", name)
		}
	}
}
