// Package passthrough provides the identity stage.
package passthrough

import (
	"context"
	"encoding/json"

	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
)

// Name is the registered stage type.
const Name = "passthrough"

// Stage returns records unchanged.
type Stage struct{}

// NewComponent is the pipeline factory for passthrough. It takes no args.
func NewComponent(args json.RawMessage, _ pipeline.Dependencies) (pipeline.Stage, error) {
	if err := pipeline.DecodeArgs(args, &struct{}{}); err != nil {
		return nil, err
	}
	return Stage{}, nil
}

// Transform returns rec.
func (Stage) Transform(_ context.Context, rec *record.Record) (*record.Record, error) {
	return rec, nil
}
