package sync

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	stdsync "sync"
	"syscall"

	"github.com/ferrovax/crate/internal/shared"
)

// Lease serializes passes over one database across processes. The claim is
// the single row of the sync_lease table, so a second crate invocation
// against the same database fails fast with shared.ErrPassActive instead of
// interleaving container writes with the running pass. A row left behind by
// a crashed process is recognized by its dead owner pid and taken over.
type Lease struct {
	db *sql.DB

	mu     stdsync.Mutex
	active bool
	phase  Phase
}

// NewLease creates a Lease over an open database.
func NewLease(db *sql.DB) *Lease {
	return &Lease{db: db}
}

// Acquire claims the lease and returns a release func. The caller must
// invoke release exactly once when the pass finishes.
func (l *Lease) Acquire() (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active {
		return nil, shared.ErrPassActive
	}
	if err := l.claimRow(); err != nil {
		return nil, err
	}
	l.active = true
	l.phase = PhaseScanning

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.releaseRow()
		l.active = false
		l.phase = PhaseIdle
	}, nil
}

// claimRow inserts the lease row, taking over a stale claim whose owner
// process is gone. The takeover update is guarded by the dead pid so two
// racing takeovers cannot both succeed.
func (l *Lease) claimRow() error {
	pid := os.Getpid()

	res, err := l.db.Exec(
		"INSERT INTO sync_lease (id, owner_pid, acquired_at) VALUES (1, ?, ?) ON CONFLICT (id) DO NOTHING",
		pid, epochNow())
	if err != nil {
		return fmt.Errorf("failed to claim pass lease: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to claim pass lease: %w", err)
	}
	if inserted == 1 {
		return nil
	}

	var owner int
	err = l.db.QueryRow("SELECT owner_pid FROM sync_lease WHERE id = 1").Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		// The holder released between our insert and this read.
		return shared.ErrPassActive
	}
	if err != nil {
		return fmt.Errorf("failed to inspect pass lease: %w", err)
	}
	if pidAlive(owner) {
		return shared.ErrPassActive
	}

	res, err = l.db.Exec(
		"UPDATE sync_lease SET owner_pid = ?, acquired_at = ? WHERE id = 1 AND owner_pid = ?",
		pid, epochNow(), owner)
	if err != nil {
		return fmt.Errorf("failed to take over stale pass lease: %w", err)
	}
	taken, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to take over stale pass lease: %w", err)
	}
	if taken != 1 {
		return shared.ErrPassActive
	}
	return nil
}

// releaseRow deletes this process's claim. Keyed by pid so a release can
// never drop a lease another process took over in the meantime.
func (l *Lease) releaseRow() {
	_, _ = l.db.Exec("DELETE FROM sync_lease WHERE id = 1 AND owner_pid = ?", os.Getpid())
}

// Held reports whether any live process, this one included, currently holds
// the lease row.
func (l *Lease) Held() (bool, error) {
	var owner int
	err := l.db.QueryRow("SELECT owner_pid FROM sync_lease WHERE id = 1").Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect pass lease: %w", err)
	}
	return pidAlive(owner), nil
}

// Active reports whether a pass in this process currently holds the lease.
func (l *Lease) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Phase returns the phase of the running pass, or PhaseIdle.
func (l *Lease) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

func (l *Lease) setPhase(p Phase) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phase = p
}

// pidAlive probes a process with signal 0. EPERM means the process exists
// but belongs to another user, which still counts as alive.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
