package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/c360studio/semdigest/record"
)

// Indexer persists processed records.
type Indexer interface {
	Persist(ctx context.Context, rec *record.Record) error
}

// PersistHook saves each record to idx.
func PersistHook(idx Indexer) PostProcessFunc {
	return func(ctx context.Context, rec *record.Record) (*record.Record, error) {
		if err := idx.Persist(ctx, rec); err != nil {
			return nil, fmt.Errorf("persist: %w", err)
		}
		return rec, nil
	}
}

// DeliverHook sends payload to sink with metadata built from the record.
func DeliverHook(sink Sink, payload string, meta func(*record.Record) Metadata) PostProcessFunc {
	return func(ctx context.Context, rec *record.Record) (*record.Record, error) {
		if !sink.Deliver(ctx, payload, meta(rec)) {
			return nil, errors.New("delivery failed")
		}
		return rec, nil
	}
}

// ComposeHooks runs every hook in order on the same record, even after a
// failure, and joins their errors.
func ComposeHooks(hooks ...PostProcessFunc) PostProcessFunc {
	return func(ctx context.Context, rec *record.Record) (*record.Record, error) {
		var errs []error
		for _, h := range hooks {
			if h == nil {
				continue
			}
			out, err := h(ctx, rec)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if out != nil {
				rec = out
			}
		}
		return rec, errors.Join(errs...)
	}
}
