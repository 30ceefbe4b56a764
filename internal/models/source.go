package models

// Source records the provenance of a user judgment (tag, note or rating).
//
// Well-known values are SourceUser, SourceAI and SourceFile; any other
// non-empty value names an external provider. The sync engine never deletes
// or overwrites a record whose source differs from the pass's import source.
type Source string

const (
	SourceUser Source = "user"
	SourceAI   Source = "ai"
	SourceFile Source = "file"
)

// ProviderLocal is the provider value for tracks discovered by library scan.
const ProviderLocal = "local"

// IsZero reports whether the source is unset.
func (s Source) IsZero() bool {
	return s == ""
}

// ProtectedFrom reports whether a record with this source must survive an
// import pass running under importSource. Unset sources are treated as owned
// by the importer, so they are not protected.
func (s Source) ProtectedFrom(importSource Source) bool {
	return !s.IsZero() && s != importSource
}

func (s Source) String() string {
	return string(s)
}
