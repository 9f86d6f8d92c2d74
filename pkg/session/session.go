// Package session manages documents: one set of layers plus the knots
// resolved over them.
//
// A [Document] is the live, in-process unit of work. It owns exactly one
// layer.Manager and one knot.Set, so two documents never share state. A
// [Record] is the persisted snapshot of a document (its resolved knot
// arrays and layer buffers), stored through one of the [Store] backends:
//   - memory: In-memory storage for development/testing
//   - file: JSON files under a directory, for the CLI
//   - redis: Redis-backed storage for multi-instance API deployments
//   - mongo: MongoDB collection for long-lived documents
//
// # Usage
//
//	doc := session.NewDocument("amsterdam", manager, knot.Options{Parallel: 4})
//	if err := doc.Knots.Add(specs...); err != nil {
//	    return err
//	}
//	if err := doc.Knots.RecomputeAll(ctx); err != nil {
//	    return err
//	}
//	store.Set(ctx, doc.Snapshot(session.DefaultTTL))
//
//	rec, err := store.Get(ctx, doc.ID)
//	if err != nil {
//	    return err
//	}
//	if rec == nil {
//	    // Document not found or expired
//	}
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/urbanknots/pkg/core/knot"
	"github.com/matzehuels/urbanknots/pkg/core/layer"
	uio "github.com/matzehuels/urbanknots/pkg/io"
)

// ErrInvalidID is returned for document ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid document id")

// DefaultTTL is how long a stored record lives.
const DefaultTTL = 7 * 24 * time.Hour

// Document is a live document.
type Document struct {
	ID        string
	Name      string
	CreatedAt time.Time

	Manager *layer.Manager
	Knots   *knot.Set
}

// NewDocument creates a document with a fresh id around m.
func NewDocument(name string, m *layer.Manager, opts knot.Options) *Document {
	return &Document{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Manager:   m,
		Knots:     knot.NewSet(m, opts),
	}
}

// Snapshot captures the current knot arrays and layer buffers. Dirty knots
// are recorded without values.
func (d *Document) Snapshot(ttl time.Duration) *Record {
	now := time.Now().UTC()
	rec := &Record{
		ID:        d.ID,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
		UpdatedAt: now,
		Functions: uio.Functions(d.Knots),
		Buffers:   uio.Buffers(d.Manager),
	}
	if ttl > 0 {
		rec.ExpiresAt = now.Add(ttl)
	}
	return rec
}

// Record is the stored form of a document.
type Record struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
	// ExpiresAt is zero for records that never expire.
	ExpiresAt time.Time `json:"expires_at,omitempty" bson:"expires_at,omitempty"`

	Functions uio.FunctionsFile `json:"functions" bson:"functions"`
	Buffers   uio.BuffersFile   `json:"buffers" bson:"buffers"`
}

// IsExpired returns true if the record has expired.
func (r *Record) IsExpired() bool {
	return !r.ExpiresAt.IsZero() && time.Now().After(r.ExpiresAt)
}

// Store is the interface for document storage backends.
type Store interface {
	// Get retrieves a record by document id.
	// Returns nil, nil if the record doesn't exist or has expired.
	Get(ctx context.Context, id string) (*Record, error)

	// Set stores a record, replacing any previous version.
	Set(ctx context.Context, rec *Record) error

	// Delete removes a record.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired records (may be a no-op where the backend
	// expires keys itself).
	Cleanup(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ValidateID checks that id is a UUID, which keeps ids safe to use as file
// names and keys.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
