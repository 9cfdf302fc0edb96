package pipeline

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/c360studio/semdigest/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderRegistry registers components that record their construction order.
func orderRegistry(t *testing.T, constructed *[]string) *Registry {
	t.Helper()
	reg := NewRegistry()

	require.NoError(t, reg.RegisterSource("static", "", func(json.RawMessage, Dependencies) (Source, error) {
		*constructed = append(*constructed, "source")
		return &staticSource{}, nil
	}))
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, reg.RegisterStage(name, "", func(json.RawMessage, Dependencies) (Stage, error) {
			*constructed = append(*constructed, name)
			return markerStage(name), nil
		}))
	}
	require.NoError(t, reg.RegisterRenderer("titles", "", func(json.RawMessage, Dependencies) (Renderer, error) {
		*constructed = append(*constructed, "formatter")
		return titleRenderer{}, nil
	}))
	require.NoError(t, reg.RegisterSink("dir", "", func(args json.RawMessage, _ Dependencies) (Sink, error) {
		var cfg struct {
			OutputDir string `json:"output_dir"`
		}
		if err := DecodeArgs(args, &cfg); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
			return nil, err
		}
		*constructed = append(*constructed, "destination")
		return &recordingSink{}, nil
	}))
	return reg
}

func pipelineDoc(outDir string, stages ...string) *config.PipelineConfig {
	doc := &config.PipelineConfig{
		Source:      &config.ComponentSpec{Type: "static"},
		Formatter:   &config.ComponentSpec{Type: "titles"},
		Destination: &config.ComponentSpec{Type: "dir", Args: map[string]any{"output_dir": outDir}},
	}
	for _, s := range stages {
		doc.Transformers = append(doc.Transformers, &config.ComponentSpec{Type: s})
	}
	return doc
}

func TestBuild_OrderPreserved(t *testing.T) {
	var constructed []string
	reg := orderRegistry(t, &constructed)

	p, err := Build(pipelineDoc(filepath.Join(t.TempDir(), "out"), "C", "A", "B"), reg, Dependencies{})
	require.NoError(t, err)

	assert.Equal(t, []string{"source", "C", "A", "B", "formatter", "destination"}, constructed)
	assert.Equal(t, []string{"C", "A", "B"}, p.StageNames)

	out, err := p.Stages.Apply(t.Context(), newRecords(1)[0])
	require.NoError(t, err)
	assert.Equal(t, "CAB", out.Summary)
}

func TestBuild_UnknownTypeConstructsNothing(t *testing.T) {
	var constructed []string
	reg := orderRegistry(t, &constructed)
	outDir := filepath.Join(t.TempDir(), "out")

	_, err := Build(pipelineDoc(outDir, "A", "nonexistent"), reg, Dependencies{})
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, KindStage, cfgErr.Kind)
	assert.Equal(t, "nonexistent", cfgErr.Type)
	assert.ErrorIs(t, err, ErrUnknownType)

	assert.Empty(t, constructed)
	assert.NoDirExists(t, outDir)
}

func TestBuild_MissingSections(t *testing.T) {
	var constructed []string
	reg := orderRegistry(t, &constructed)

	tests := []struct {
		name   string
		mutate func(*config.PipelineConfig)
		kind   Kind
	}{
		{name: "no source", mutate: func(d *config.PipelineConfig) { d.Source = nil }, kind: KindSource},
		{name: "formatter without type", mutate: func(d *config.PipelineConfig) { d.Formatter = &config.ComponentSpec{} }, kind: KindRenderer},
		{name: "no destination", mutate: func(d *config.PipelineConfig) { d.Destination = nil }, kind: KindSink},
		{name: "transformer without type", mutate: func(d *config.PipelineConfig) {
			d.Transformers = append(d.Transformers, &config.ComponentSpec{})
		}, kind: KindStage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := pipelineDoc(t.TempDir(), "A")
			tt.mutate(doc)

			_, err := Build(doc, reg, Dependencies{})
			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.kind, cfgErr.Kind)
			assert.ErrorIs(t, err, ErrMissingType)
		})
	}
	assert.Empty(t, constructed)
}

func TestBuild_ConstructorFailureClosesBuilt(t *testing.T) {
	var closed []string
	reg := NewRegistry()
	require.NoError(t, reg.RegisterSource("src", "", func(json.RawMessage, Dependencies) (Source, error) {
		return closer{closed: &closed, name: "src"}, nil
	}))
	require.NoError(t, reg.RegisterStage("stage", "", func(json.RawMessage, Dependencies) (Stage, error) {
		return closer{closed: &closed, name: "stage"}, nil
	}))
	require.NoError(t, reg.RegisterRenderer("bad", "", func(json.RawMessage, Dependencies) (Renderer, error) {
		return nil, errors.New("template_path: no such file")
	}))
	require.NoError(t, reg.RegisterSink("sink", "", func(json.RawMessage, Dependencies) (Sink, error) {
		t.Fatal("sink must not be constructed")
		return nil, nil
	}))

	p, err := Build(&config.PipelineConfig{
		Source:       &config.ComponentSpec{Type: "src"},
		Transformers: []*config.ComponentSpec{{Type: "stage"}},
		Formatter:    &config.ComponentSpec{Type: "bad"},
		Destination:  &config.ComponentSpec{Type: "sink"},
	}, reg, Dependencies{})

	assert.Nil(t, p)
	assert.ErrorContains(t, err, `renderer "bad": template_path: no such file`)
	assert.Equal(t, []string{"stage", "src"}, closed)
}

func TestResolve(t *testing.T) {
	var constructed []string
	reg := orderRegistry(t, &constructed)

	require.NoError(t, Resolve(pipelineDoc(t.TempDir(), "A", "B"), reg))
	assert.Empty(t, constructed)

	assert.ErrorIs(t, Resolve(nil, reg), ErrMissingType)
}
