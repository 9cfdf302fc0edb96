package pipeline

import (
	"errors"
	"fmt"
	"io"

	"github.com/c360studio/semdigest/config"
)

// Pipeline is a fully constructed pipeline. It is not modified after Build.
type Pipeline struct {
	Source     Source
	Stages     Chain
	StageNames []string
	Renderer   Renderer
	Sink       Sink

	SourceName   string
	RendererName string
	SinkName     string
}

// Resolve checks every section of doc against reg without constructing
// anything. It returns the first ConfigError in pipeline order.
func Resolve(doc *config.PipelineConfig, reg *Registry) error {
	if doc == nil {
		return &ConfigError{Kind: KindSource, Err: ErrMissingType}
	}
	if _, err := reg.resolve(KindSource, doc.Source); err != nil {
		return err
	}
	for i, spec := range doc.Transformers {
		if _, err := reg.resolve(KindStage, spec); err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) && cfgErr.Type == "" {
				cfgErr.Err = fmt.Errorf("transformers[%d]: %w", i, cfgErr.Err)
			}
			return err
		}
	}
	if _, err := reg.resolve(KindRenderer, doc.Formatter); err != nil {
		return err
	}
	if _, err := reg.resolve(KindSink, doc.Destination); err != nil {
		return err
	}
	return nil
}

// Build constructs a pipeline in the order source, transformers (in list
// order), formatter, destination. All sections are resolved first, so an
// unknown type fails before any constructor runs. If a constructor fails, the
// components already built are closed when they implement io.Closer.
func Build(doc *config.PipelineConfig, reg *Registry, deps Dependencies) (*Pipeline, error) {
	if err := Resolve(doc, reg); err != nil {
		return nil, err
	}

	var built []any
	fail := func(err error) (*Pipeline, error) {
		closeAll(built)
		return nil, err
	}

	p := &Pipeline{
		SourceName:   doc.Source.Type,
		RendererName: doc.Formatter.Type,
		SinkName:     doc.Destination.Type,
	}

	src, err := reg.BuildSource(doc.Source, deps)
	if err != nil {
		return fail(err)
	}
	built = append(built, src)
	p.Source = src

	for _, spec := range doc.Transformers {
		stage, err := reg.BuildStage(spec, deps)
		if err != nil {
			return fail(err)
		}
		built = append(built, stage)
		p.Stages = append(p.Stages, stage)
		p.StageNames = append(p.StageNames, spec.Type)
	}

	renderer, err := reg.BuildRenderer(doc.Formatter, deps)
	if err != nil {
		return fail(err)
	}
	built = append(built, renderer)
	p.Renderer = renderer

	sink, err := reg.BuildSink(doc.Destination, deps)
	if err != nil {
		return fail(err)
	}
	p.Sink = sink

	return p, nil
}

// Close releases components that hold resources.
func (p *Pipeline) Close() error {
	components := []any{p.Source}
	for _, s := range p.Stages {
		components = append(components, s)
	}
	components = append(components, p.Renderer, p.Sink)
	return closeAll(components)
}

func closeAll(components []any) error {
	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		if c, ok := components[i].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
