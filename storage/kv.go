package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/c360studio/semdigest/record"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "SEMDIGEST_ARTICLES"

// KVStore stores records as JSON in a JetStream KV bucket keyed by ID.
type KVStore struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// NewKVStore opens bucket, creating it if it doesn't exist.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create %s bucket: %w", bucket, err)
	}
	return &KVStore{kv: kv, now: time.Now}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "semdigest article index",
		History:     5, // Keep last 5 revisions
	})
}

func key(id int64) string { return strconv.FormatInt(id, 10) }

// Persist implements Store.
func (s *KVStore) Persist(ctx context.Context, rec *record.Record) error {
	stamp(rec, s.now)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := s.kv.Put(ctx, key(rec.ID), data); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *KVStore) Get(ctx context.Context, id int64) (*record.Record, error) {
	entry, err := s.kv.Get(ctx, key(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	var rec record.Record
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return &rec, nil
}

// List implements Store. Entries that fail to load are skipped.
func (s *KVStore) List(ctx context.Context) ([]*record.Record, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return []*record.Record{}, nil
		}
		return nil, fmt.Errorf("list record keys: %w", err)
	}

	recs := make([]*record.Record, 0, len(keys))
	for _, k := range keys {
		entry, err := s.kv.Get(ctx, k)
		if err != nil {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			continue
		}
		recs = append(recs, &rec)
	}
	sortByID(recs)
	return recs, nil
}

// History returns up to the bucket's retained revisions of one record,
// oldest first.
func (s *KVStore) History(ctx context.Context, id int64) ([]*record.Record, error) {
	entries, err := s.kv.History(ctx, key(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record history: %w", err)
	}

	recs := make([]*record.Record, 0, len(entries))
	for _, entry := range entries {
		if entry.Operation() != jetstream.KeyValuePut {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal revision %d: %w", entry.Revision(), err)
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

// Close implements Store. The bucket outlives the store.
func (s *KVStore) Close() error { return nil }
