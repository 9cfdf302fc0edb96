// Package record defines the unit of work that flows through a pipeline.
package record

import (
	"fmt"
	"time"
)

// Field names used in degradations.
const (
	FieldContent          = "content"
	FieldLinks            = "links"
	FieldSummary          = "summary"
	FieldTags             = "tags"
	FieldCommentSummaries = "comment_summaries"
)

// Record is one item from the source, progressively enriched by stages.
//
// Stages add or overwrite enrichment fields and may append degradations.
// They never clear ID and never remove a degradation.
type Record struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	By        string    `json:"by,omitempty"`
	Score     int       `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	Comments  []string  `json:"comments,omitempty"`

	Content          string   `json:"content,omitempty"`
	Links            []string `json:"links,omitempty"`
	Summary          string   `json:"summary,omitempty"`
	CommentSummaries []string `json:"comment_summaries,omitempty"`
	Tags             []Tag    `json:"tags,omitempty"`

	Degradations []Degradation `json:"degradations,omitempty"`
	IndexedAt    time.Time     `json:"indexed_at,omitzero"`
}

// Tag is a classification label with a confidence in [0, 1].
type Tag struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Degradation notes that a stage could not produce a field and wrote a
// fallback value instead. The record still counts as processed.
type Degradation struct {
	Stage  string `json:"stage"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Label identifies the record in logs and progress output.
func (r *Record) Label() string {
	if r == nil {
		return "<nil>"
	}
	if r.Title != "" {
		return r.Title
	}
	return fmt.Sprintf("item %d", r.ID)
}

// Degrade records that stage wrote a fallback for field because of err.
func (r *Record) Degrade(stage, field string, err error) {
	reason := "unavailable"
	if err != nil {
		reason = err.Error()
	}
	r.Degradations = append(r.Degradations, Degradation{Stage: stage, Field: field, Reason: reason})
}

// FieldDegraded reports whether any stage degraded field.
func (r *Record) FieldDegraded(field string) bool {
	for _, d := range r.Degradations {
		if d.Field == field {
			return true
		}
	}
	return false
}

// Degraded reports whether any stage degraded this record.
func (r *Record) Degraded() bool {
	return len(r.Degradations) > 0
}

// TagNames returns the names of the record's tags in order.
func (r *Record) TagNames() []string {
	names := make([]string, len(r.Tags))
	for i, t := range r.Tags {
		names[i] = t.Name
	}
	return names
}
