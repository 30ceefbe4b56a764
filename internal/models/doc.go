// Package models defines domain entities and persistence interfaces for the crate music library.
//
// The package contains two categories of types:
//
// 1. Value types shared across layers:
//   - [Source] : Ownership provenance for user judgments (user, ai, file, or a provider name)
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Track] : A library entry, optionally mapped to one local audio file
//   - [Tag] : A short label attached to a track, unique per (track, label, source)
//   - [Note] : Free-text annotation, always user-owned
//   - [Rating] : Numeric judgment (0-100) with timestamp and owning source
//
// All persistent entities implement the Model interface providing ID generation, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
