// Package render turns an assembled digest into a markdown or HTML payload
// using Go templates. Default templates are embedded; template_path
// replaces them with a file from disk.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	"io"
	"os"
	"path/filepath"
	texttemplate "text/template"

	"github.com/c360studio/semdigest/pipeline"
)

// Registered renderer types.
const (
	MarkdownName = "markdown"
	HTMLName     = "html"
)

//go:embed templates/*.tmpl
var defaults embed.FS

// Config holds the renderer args.
type Config struct {
	// TemplatePath is a template file to use instead of the embedded one.
	TemplatePath string `json:"template_path"`
}

// executor is satisfied by both text/template and html/template.
type executor interface {
	Execute(w io.Writer, data any) error
}

// Renderer executes one parsed template against a digest.
type Renderer struct {
	name string
	tmpl executor
}

// Render implements pipeline.Renderer.
func (r *Renderer) Render(d *pipeline.Digest) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render %s: %w", r.name, err)
	}
	return buf.String(), nil
}

// NewMarkdown parses a text/template markdown renderer.
func NewMarkdown(cfg Config) (*Renderer, error) {
	name, src, err := loadTemplate(cfg.TemplatePath, "templates/digest.md.tmpl")
	if err != nil {
		return nil, err
	}
	tmpl, err := texttemplate.New(name).Funcs(texttemplate.FuncMap(funcs)).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Renderer{name: MarkdownName, tmpl: tmpl}, nil
}

// NewHTML parses an html/template renderer. Record fields are escaped.
func NewHTML(cfg Config) (*Renderer, error) {
	name, src, err := loadTemplate(cfg.TemplatePath, "templates/digest.html.tmpl")
	if err != nil {
		return nil, err
	}
	tmpl, err := htmltemplate.New(name).Funcs(htmltemplate.FuncMap(funcs)).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return &Renderer{name: HTMLName, tmpl: tmpl}, nil
}

// NewMarkdownComponent is the pipeline factory for markdown.
func NewMarkdownComponent(args json.RawMessage, _ pipeline.Dependencies) (pipeline.Renderer, error) {
	var cfg Config
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return NewMarkdown(cfg)
}

// NewHTMLComponent is the pipeline factory for html.
func NewHTMLComponent(args json.RawMessage, _ pipeline.Dependencies) (pipeline.Renderer, error) {
	var cfg Config
	if err := pipeline.DecodeArgs(args, &cfg); err != nil {
		return nil, err
	}
	return NewHTML(cfg)
}

func loadTemplate(path, fallback string) (name, src string, err error) {
	if path == "" {
		data, err := defaults.ReadFile(fallback)
		if err != nil {
			return "", "", err
		}
		return filepath.Base(fallback), string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read template: %w", err)
	}
	return filepath.Base(path), string(data), nil
}
