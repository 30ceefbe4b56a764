// Package codec reads and writes the crate metadata block embedded in audio
// files. It maps every supported tag container onto one fixed [TagSet]
// structure and reports failures as typed errors so the sync engine can tell
// a skippable bad file from a broken pass.
package codec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies the tag container family inside an audio file.
type Kind int

const (
	KindUnknown Kind = iota
	KindFrame         // ID3 frames (mp3)
	KindAtom          // MP4 atoms (m4a, mp4)
	KindVorbis        // vorbis comments (flac, ogg, opus)
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindAtom:
		return "atom"
	case KindVorbis:
		return "vorbis"
	default:
		return "unknown"
	}
}

// Failure kinds for [Error].
var (
	ErrUnsupported = errors.New("unsupported tag container")
	ErrCorrupt     = errors.New("corrupt tag container")
)

// Error is a per-file codec failure. It always wraps ErrUnsupported or
// ErrCorrupt; callers skip the file and continue the pass.
type Error struct {
	Path string
	Kind error // ErrUnsupported or ErrCorrupt
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Adapter reads and writes a [TagSet] against one file. Implementations are
// stateless with respect to staging; callers decide which path a write lands
// on (the atomic writer always points it at a temp copy).
type Adapter interface {
	Read(path string) (*TagSet, error)
	Write(path string, ts *TagSet) error
}

// extKinds maps supported extensions to their container family.
var extKinds = map[string]Kind{
	".mp3":  KindFrame,
	".m4a":  KindAtom,
	".mp4":  KindAtom,
	".flac": KindVorbis,
	".ogg":  KindVorbis,
	".opus": KindVorbis,
}

// KindOf returns the container family for a path based on its extension.
func KindOf(path string) Kind {
	return extKinds[strings.ToLower(filepath.Ext(path))]
}

// IsSupported reports whether the path's extension names a known container.
func IsSupported(path string) bool {
	return KindOf(path) != KindUnknown
}

// magic headers per container family, checked against the file's first bytes.
// mp3 files may start with an ID3v2 header or directly with an MPEG frame
// sync; mp4 atoms carry "ftyp" at offset 4.
func probeKind(header []byte) Kind {
	if len(header) < 8 {
		return KindUnknown
	}
	switch {
	case string(header[:3]) == "ID3":
		return KindFrame
	case header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return KindFrame
	case string(header[4:8]) == "ftyp":
		return KindAtom
	case string(header[:4]) == "fLaC":
		return KindVorbis
	case string(header[:4]) == "OggS":
		return KindVorbis
	}
	return KindUnknown
}

// DetectKind resolves a file's container kind, returning a typed [*Error]
// when the extension is unknown or the content does not match it.
func DetectKind(path string) (Kind, error) {
	kind := KindOf(path)
	if kind == KindUnknown {
		return KindUnknown, &Error{Path: path, Kind: ErrUnsupported}
	}

	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := f.Read(header)
	if err != nil || n < 8 {
		return KindUnknown, &Error{Path: path, Kind: ErrCorrupt, Err: err}
	}

	if probeKind(header[:n]) != kind {
		return KindUnknown, &Error{Path: path, Kind: ErrCorrupt, Err: fmt.Errorf("content does not match %s container", kind)}
	}

	return kind, nil
}
