package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Steps of the atomic update protocol, recorded on [WriteError] so failures
// can be reported precisely.
const (
	StepDuplicate = "duplicate"
	StepMutate    = "mutate"
	StepReplace   = "replace"
	StepStat      = "stat"
)

// WriteError is a per-file failure of the atomic update protocol. Whatever
// the step, the original file is untouched and no temp file is left behind.
type WriteError struct {
	Path string
	Step string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("atomic update of %s failed at %s: %v", e.Path, e.Step, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// AtomicUpdate rewrites the tag container at path via mutate using a
// copy-temp-replace protocol: duplicate the file to a sibling temp, apply
// the mutation there through the adapter, then rename the temp over the
// original. On any failure the temp is removed and the original is
// byte-for-byte unchanged.
//
// The returned value is the file's modification time (epoch seconds)
// observed by a fresh stat after the rename. It is the only trustworthy
// baseline for change detection: persisting it guarantees the engine never
// re-imports its own write.
func AtomicUpdate(a Adapter, path string, mutate func(*TagSet) error) (float64, error) {
	tmp, err := duplicate(path)
	if err != nil {
		return 0, &WriteError{Path: path, Step: StepDuplicate, Err: err}
	}

	if err := applyMutation(a, tmp, mutate); err != nil {
		os.Remove(tmp)
		return 0, &WriteError{Path: path, Step: StepMutate, Err: err}
	}

	// The mutated bytes must be on disk before the rename publishes them, or
	// a crash could leave the path pointing at a hollow container.
	if err := syncFile(tmp); err != nil {
		os.Remove(tmp)
		return 0, &WriteError{Path: path, Step: StepMutate, Err: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, &WriteError{Path: path, Step: StepReplace, Err: err}
	}

	// Stat strictly after the rename; a pre-write timestamp here would make
	// the next import pass see the engine's own write as an external change.
	mtime, err := MtimeOf(path)
	if err != nil {
		return 0, &WriteError{Path: path, Step: StepStat, Err: err}
	}

	return mtime, nil
}

func applyMutation(a Adapter, path string, mutate func(*TagSet) error) error {
	ts, err := a.Read(path)
	if err != nil {
		return err
	}

	mutated := ts.Clone()
	if err := mutate(mutated); err != nil {
		return err
	}

	return a.Write(path, mutated)
}

// duplicate copies path to a sibling temp file, preserving the audio
// extension so container detection keeps working against the copy.
func duplicate(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	tmp := fmt.Sprintf("%s.crate-%s%s", stem, uuid.NewString()[:8], ext)

	dst, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return "", err
	}

	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(tmp)
		return "", err
	}

	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}

	return tmp, nil
}

// syncFile reopens path and flushes it to disk. Adapters open and close the
// file themselves, so the fsync has to happen on a fresh handle.
func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// MtimeOf returns a file's modification time as epoch seconds with
// sub-second precision, the representation persisted on track rows.
func MtimeOf(path string) (float64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return float64(info.ModTime().UnixNano()) / 1e9, nil
}
