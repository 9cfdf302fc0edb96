package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/c360studio/semdigest/config"
)

// Kind is the role a component plays in a pipeline.
type Kind string

const (
	KindSource   Kind = "source"
	KindStage    Kind = "stage"
	KindRenderer Kind = "renderer"
	KindSink     Kind = "sink"
)

// Kinds lists every kind in pipeline order.
var Kinds = []Kind{KindSource, KindStage, KindRenderer, KindSink}

// Registration describes one component type.
// Factory must be the factory type matching Kind.
type Registration struct {
	Kind        Kind
	Name        string
	Description string
	Factory     any
}

// Registry maps (kind, type name) to constructors.
// Registering an existing pair replaces it.
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind]map[string]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	entries := make(map[Kind]map[string]Registration, len(Kinds))
	for _, k := range Kinds {
		entries[k] = make(map[string]Registration)
	}
	return &Registry{entries: entries}
}

// Register adds or replaces a component type.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return fmt.Errorf("register %s: name is required", reg.Kind)
	}

	var ok bool
	switch reg.Kind {
	case KindSource:
		_, ok = reg.Factory.(SourceFactory)
	case KindStage:
		_, ok = reg.Factory.(StageFactory)
	case KindRenderer:
		_, ok = reg.Factory.(RendererFactory)
	case KindSink:
		_, ok = reg.Factory.(SinkFactory)
	default:
		return fmt.Errorf("register %q: unknown kind %q", reg.Name, reg.Kind)
	}
	if !ok {
		return fmt.Errorf("register %s %q: factory has type %T", reg.Kind, reg.Name, reg.Factory)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reg.Kind][reg.Name] = reg
	return nil
}

// RegisterSource registers a source factory.
func (r *Registry) RegisterSource(name, description string, f SourceFactory) error {
	return r.Register(Registration{Kind: KindSource, Name: name, Description: description, Factory: f})
}

// RegisterStage registers a stage factory.
func (r *Registry) RegisterStage(name, description string, f StageFactory) error {
	return r.Register(Registration{Kind: KindStage, Name: name, Description: description, Factory: f})
}

// RegisterRenderer registers a renderer factory.
func (r *Registry) RegisterRenderer(name, description string, f RendererFactory) error {
	return r.Register(Registration{Kind: KindRenderer, Name: name, Description: description, Factory: f})
}

// RegisterSink registers a sink factory.
func (r *Registry) RegisterSink(name, description string, f SinkFactory) error {
	return r.Register(Registration{Kind: KindSink, Name: name, Description: description, Factory: f})
}

// Names returns the registered type names for kind, sorted.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries[kind]))
	for name := range r.entries[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the registration for (kind, name).
func (r *Registry) Lookup(kind Kind, name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[kind][name]
	return reg, ok
}

// resolve checks that spec names a registered type without constructing it.
func (r *Registry) resolve(kind Kind, spec *config.ComponentSpec) (Registration, error) {
	if spec == nil || spec.Type == "" {
		return Registration{}, &ConfigError{Kind: kind, Err: ErrMissingType}
	}
	reg, ok := r.Lookup(kind, spec.Type)
	if !ok {
		return Registration{}, &ConfigError{Kind: kind, Type: spec.Type, Err: ErrUnknownType}
	}
	return reg, nil
}

// BuildSource resolves and constructs a source.
func (r *Registry) BuildSource(spec *config.ComponentSpec, deps Dependencies) (Source, error) {
	reg, err := r.resolve(KindSource, spec)
	if err != nil {
		return nil, err
	}
	return construct[Source](KindSource, spec, reg.Factory.(SourceFactory), deps)
}

// BuildStage resolves and constructs a stage.
func (r *Registry) BuildStage(spec *config.ComponentSpec, deps Dependencies) (Stage, error) {
	reg, err := r.resolve(KindStage, spec)
	if err != nil {
		return nil, err
	}
	return construct[Stage](KindStage, spec, reg.Factory.(StageFactory), deps)
}

// BuildRenderer resolves and constructs a renderer.
func (r *Registry) BuildRenderer(spec *config.ComponentSpec, deps Dependencies) (Renderer, error) {
	reg, err := r.resolve(KindRenderer, spec)
	if err != nil {
		return nil, err
	}
	return construct[Renderer](KindRenderer, spec, reg.Factory.(RendererFactory), deps)
}

// BuildSink resolves and constructs a sink.
func (r *Registry) BuildSink(spec *config.ComponentSpec, deps Dependencies) (Sink, error) {
	reg, err := r.resolve(KindSink, spec)
	if err != nil {
		return nil, err
	}
	return construct[Sink](KindSink, spec, reg.Factory.(SinkFactory), deps)
}

// construct runs a factory, turning errors and panics into ConfigErrors that
// keep the constructor's message.
func construct[T any](kind Kind, spec *config.ComponentSpec, factory func(json.RawMessage, Dependencies) (T, error), deps Dependencies) (component T, err error) {
	var zero T

	args, err := spec.RawArgs()
	if err != nil {
		return zero, &ConfigError{Kind: kind, Type: spec.Type, Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			component = zero
			err = &ConfigError{Kind: kind, Type: spec.Type, Err: fmt.Errorf("constructor panicked: %v", p)}
		}
	}()

	component, err = factory(args, deps)
	if err != nil {
		return zero, &ConfigError{Kind: kind, Type: spec.Type, Err: err}
	}
	return component, nil
}

// DecodeArgs decodes constructor args into dst, rejecting unknown keys.
func DecodeArgs(args json.RawMessage, dst any) error {
	if len(args) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid args: %w", err)
	}
	return nil
}
