package codec

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// createTestAudioFile generates a minimal MP3 using ffmpeg.
// Skips the test if ffmpeg is not available.
func createTestAudioFile(t *testing.T, dir string) string {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available, skipping taglib test")
	}

	path := filepath.Join(dir, "test.mp3")
	cmd := exec.Command("ffmpeg", "-f", "lavfi", "-i", "anullsrc=r=44100:cl=mono", "-t", "0.1", "-q:a", "9", path)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Run(); err != nil {
		t.Fatalf("failed to create test audio file: %v", err)
	}
	return path
}

func TestTaglibAdapter(t *testing.T) {
	t.Run("write then read round trip", func(t *testing.T) {
		dir := t.TempDir()
		path := createTestAudioFile(t, dir)
		adapter := NewTaglibAdapter()

		ts := NewTagSet()
		ts.Rating = 83
		ts.Comment = "Old note"
		ts.SetLabels([]string{"house", "deep"})
		ts.ProviderIDs["musicbrainz"] = "a1b2"
		ts.BPM = 124
		ts.Key = "Am"

		if err := adapter.Write(path, ts); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		got, err := adapter.Read(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}

		if got.Rating != 83 {
			t.Errorf("rating = %d, want 83", got.Rating)
		}
		if got.Comment != "Old note" {
			t.Errorf("comment = %q, want %q", got.Comment, "Old note")
		}
		if len(got.Labels) != 2 || got.Labels[0] != "deep" || got.Labels[1] != "house" {
			t.Errorf("labels = %v", got.Labels)
		}
		if got.ProviderIDs["musicbrainz"] != "a1b2" {
			t.Errorf("provider ids = %v", got.ProviderIDs)
		}
		if got.BPM != 124 {
			t.Errorf("bpm = %d, want 124", got.BPM)
		}
		if got.Key != "Am" {
			t.Errorf("key = %q, want Am", got.Key)
		}
	})

	t.Run("clearing removes stale values", func(t *testing.T) {
		dir := t.TempDir()
		path := createTestAudioFile(t, dir)
		adapter := NewTaglibAdapter()

		ts := NewTagSet()
		ts.Rating = 83
		ts.SetLabels([]string{"house"})
		if err := adapter.Write(path, ts); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		if err := adapter.Write(path, NewTagSet()); err != nil {
			t.Fatalf("clearing write failed: %v", err)
		}

		got, err := adapter.Read(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if got.Rating != RatingUnset || len(got.Labels) != 0 {
			t.Errorf("stale values survived: %+v", got)
		}
	})

	t.Run("unsupported container", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.wav")
		if err := os.WriteFile(path, []byte("RIFF...."), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := NewTaglibAdapter().Read(path)
		var cerr *Error
		if !errors.As(err, &cerr) || cerr.Kind != ErrUnsupported {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})
}
