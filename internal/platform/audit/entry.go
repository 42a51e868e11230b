// Package audit keeps the clinic's append-only, hash-chained action log.
//
// Every entry's hash is SHA-256 over the previous entry's hash followed by a
// canonical JSON encoding of the entry's own fields, so altering, removing or
// reordering any stored entry breaks the chain from that point on.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Attribution used for entries written by the system rather than a user.
const (
	SystemUserID = "system"
	SystemRole   = "system"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

type Entry struct {
	// Seq is the storage order key. It is not part of the hash.
	Seq        int64          `json:"seq"`
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	UserRole   string         `json:"user_role"`
	Action     string         `json:"action"`
	ResourceID string         `json:"resource_id,omitempty"`
	Details    map[string]any `json:"details"`
	Timestamp  time.Time      `json:"timestamp"`
	Hash       string         `json:"hash"`
}

// hashedFields fixes the field order of the canonical encoding. Map keys in
// Details are sorted by encoding/json.
type hashedFields struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	UserRole   string         `json:"user_role"`
	Action     string         `json:"action"`
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details"`
	Timestamp  string         `json:"timestamp"`
}

func computeHash(prevHash string, e *Entry) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(prevHash)

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(hashedFields{
		ID:         e.ID,
		UserID:     e.UserID,
		UserRole:   e.UserRole,
		Action:     e.Action,
		ResourceID: e.ResourceID,
		Details:    e.Details,
		Timestamp:  e.Timestamp.UTC().Format(timestampLayout),
	})
	if err != nil {
		return "", fmt.Errorf("encode audit entry %s: %w", e.ID, err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// normalizeDetails round-trips details through JSON so the in-memory value
// hashes exactly like the copy decoded back from any store.
func normalizeDetails(details map[string]any) (map[string]any, error) {
	if len(details) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode audit details: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode audit details: %w", err)
	}
	return out, nil
}

func (e *Entry) clone() *Entry {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// Filter selects entries for Query. Zero fields match everything; the date
// bounds are inclusive.
type Filter struct {
	UserID    string
	Action    string
	StartDate *time.Time
	EndDate   *time.Time
}

func (f Filter) Matches(e *Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.StartDate != nil && e.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && e.Timestamp.After(*f.EndDate) {
		return false
	}
	return true
}

// IntegrityReport is the outcome of VerifyIntegrity. TamperedAt is the
// zero-based position of the first entry that does not match its recomputed
// hash.
type IntegrityReport struct {
	Valid          bool   `json:"valid"`
	TamperedAt     *int   `json:"tampered_at,omitempty"`
	Message        string `json:"message,omitempty"`
	EntriesChecked int    `json:"entries_checked"`
}
