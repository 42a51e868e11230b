package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ayurclinic/clinic/internal/platform/auth"
	"github.com/ayurclinic/clinic/internal/platform/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Log owns the chain tail. Append is the only mutator in normal operation
// and is serialized so no two entries can chain to the same predecessor.
type Log struct {
	mu      sync.Mutex
	store   Store
	tail    string
	lastSeq int64

	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewLog resumes the chain from the last stored entry.
func NewLog(ctx context.Context, store Store) (*Log, error) {
	last, err := store.Last(ctx)
	if err != nil {
		return nil, fmt.Errorf("load audit tail: %w", err)
	}
	l := &Log{
		store:  store,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	if last != nil {
		l.tail = last.Hash
		l.lastSeq = last.Seq
	}
	return l, nil
}

func (l *Log) SetMetrics(m *metrics.Metrics) { l.metrics = m }

func (l *Log) SetLogger(logger zerolog.Logger) { l.logger = logger.With().Str("component", "audit").Logger() }

// Append chains a new entry to the tail and persists it. When the store
// fails the tail is left where it was and the error is returned unchanged
// in kind.
func (l *Log) Append(ctx context.Context, userID, userRole, action, resourceID string, details map[string]any) (*Entry, error) {
	normalized, err := normalizeDetails(details)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := &Entry{
		Seq:        l.lastSeq + 1,
		ID:         uuid.New().String(),
		UserID:     userID,
		UserRole:   userRole,
		Action:     action,
		ResourceID: resourceID,
		Details:    normalized,
		Timestamp:  l.now().UTC().Truncate(time.Millisecond),
	}
	if e.Hash, err = computeHash(l.tail, e); err != nil {
		return nil, err
	}
	if err := l.store.Append(ctx, e); err != nil {
		return nil, fmt.Errorf("append audit entry: %w", err)
	}

	l.tail = e.Hash
	l.lastSeq = e.Seq
	l.metrics.IncAuditAppended(action)
	return e.clone(), nil
}

// Record appends an entry attributed to the caller on ctx. It is called once
// the mutation it describes has committed, so a failed append is logged
// rather than returned.
func (l *Log) Record(ctx context.Context, action, resourceID string, details map[string]any) {
	l.RecordAs(ctx, auth.UserIDFromContext(ctx), auth.PrimaryRole(ctx), action, resourceID, details)
}

func (l *Log) RecordAs(ctx context.Context, userID, userRole, action, resourceID string, details map[string]any) {
	if _, err := l.Append(ctx, userID, userRole, action, resourceID, details); err != nil {
		l.logger.Error().Err(err).
			Str("action", action).
			Str("resource_id", resourceID).
			Str("user_id", userID).
			Msg("audit append failed after commit")
	}
}

// Query returns the entries matching f in log order.
func (l *Log) Query(ctx context.Context, f Filter) ([]*Entry, error) {
	entries, err := l.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return entries, nil
}

// VerifyIntegrity recomputes every stored hash from the entry's fields and
// the previous entry's stored hash, stopping at the first mismatch. It also
// reports entries missing from the end of the store since this Log last
// appended. It never writes.
func (l *Log) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.store.List(ctx, Filter{})
	if err != nil {
		l.metrics.IncIntegrityCheck("error")
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	prev := ""
	for i, e := range entries {
		want, err := computeHash(prev, e)
		if err != nil {
			l.metrics.IncIntegrityCheck("error")
			return nil, err
		}
		if want != e.Hash {
			return l.tampered(i, i+1, fmt.Sprintf("hash mismatch at entry %d (id %s)", i, e.ID)), nil
		}
		prev = e.Hash
	}

	if prev != l.tail {
		return l.tampered(len(entries), len(entries), "stored log ends before the last appended entry"), nil
	}

	l.metrics.IncIntegrityCheck("valid")
	return &IntegrityReport{Valid: true, EntriesChecked: len(entries)}, nil
}

func (l *Log) tampered(at, checked int, msg string) *IntegrityReport {
	l.metrics.IncIntegrityCheck("tampered")
	l.logger.Error().Int("tampered_at", at).Int("entries_checked", checked).Msg("audit chain integrity violation: " + msg)
	return &IntegrityReport{Valid: false, TamperedAt: &at, Message: msg, EntriesChecked: checked}
}

// Reset truncates the log and restarts the chain. It is a maintenance
// operation reachable only from the CLI.
func (l *Log) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Truncate(ctx); err != nil {
		return fmt.Errorf("truncate audit log: %w", err)
	}
	l.logger.Warn().Int64("discarded_entries", l.lastSeq).Msg("audit log reset")
	l.tail = ""
	l.lastSeq = 0
	return nil
}

// Len is the number of entries appended to the chain so far.
func (l *Log) Len() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSeq
}
