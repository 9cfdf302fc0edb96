package pipeline

import (
	"context"
	"fmt"

	"github.com/c360studio/semdigest/record"
)

// Chain composes stages left to right.
type Chain []Stage

// Apply runs every stage in order, feeding each output to the next stage.
// The first error is returned unchanged; a stage returning a nil record is an
// error. An empty chain returns rec as-is.
func (c Chain) Apply(ctx context.Context, rec *record.Record) (*record.Record, error) {
	for i, stage := range c {
		out, err := stage.Transform(ctx, rec)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("stage %d returned no record", i)
		}
		rec = out
	}
	return rec, nil
}
