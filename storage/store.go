// Package storage is the durable article index. Every processed record is
// upserted by ID; backends are a NATS JetStream KV bucket, a SQLite file,
// or process memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/c360studio/semdigest/config"
	"github.com/c360studio/semdigest/record"
	"github.com/nats-io/nats.go/jetstream"
)

// Store persists records.
type Store interface {
	// Persist upserts rec by ID, stamping IndexedAt when it is zero.
	Persist(ctx context.Context, rec *record.Record) error

	// Get returns the record with id, or ErrNotFound.
	Get(ctx context.Context, id int64) (*record.Record, error)

	// List returns every record ordered by ID.
	List(ctx context.Context) ([]*record.Record, error)

	Close() error
}

// Open builds the store selected by cfg. The none backend returns a nil
// Store and no error. js is required only by the nats backend.
func Open(ctx context.Context, cfg config.IndexConfig, js jetstream.JetStream) (Store, error) {
	switch cfg.Backend {
	case config.IndexNone:
		return nil, nil
	case config.IndexMemory:
		return NewMemoryStore(), nil
	case config.IndexSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case config.IndexNATS:
		if js == nil {
			return nil, errors.New("nats index requires a JetStream connection")
		}
		return NewKVStore(ctx, js, cfg.Bucket)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// stamp sets IndexedAt on rec when unset.
func stamp(rec *record.Record, now func() time.Time) {
	if rec.IndexedAt.IsZero() {
		rec.IndexedAt = now().UTC()
	}
}

func sortByID(recs []*record.Record) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
