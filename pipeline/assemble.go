package pipeline

import (
	"sort"
	"time"

	"github.com/c360studio/semdigest/record"
)

// TimestampLayout formats Digest.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Digest is the render context for a batch.
type Digest struct {
	Articles    []*record.Record
	GeneratedAt time.Time
	Timestamp   string
}

// Assemble wraps records, in the given order, into a digest stamped with now.
// Articles is never nil.
func Assemble(records []*record.Record, now time.Time) *Digest {
	articles := make([]*record.Record, len(records))
	copy(articles, records)
	return &Digest{
		Articles:    articles,
		GeneratedAt: now,
		Timestamp:   now.Format(TimestampLayout),
	}
}

// AssembleOne wraps a single record in the same shape as a batch.
func AssembleOne(rec *record.Record, now time.Time) *Digest {
	return Assemble([]*record.Record{rec}, now)
}

// TagNames returns the distinct tag names across all articles, sorted.
func (d *Digest) TagNames() []string {
	seen := make(map[string]struct{})
	for _, a := range d.Articles {
		for _, t := range a.Tags {
			seen[t.Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metadata accompanies a payload to a sink.
type Metadata struct {
	RunID       string
	ID          int64
	Title       string
	URL         string
	Articles    int
	GeneratedAt time.Time
}

// RecordMetadata describes a delivery made on behalf of one record.
func RecordMetadata(runID string, rec *record.Record, d *Digest) Metadata {
	return Metadata{
		RunID:       runID,
		ID:          rec.ID,
		Title:       rec.Title,
		URL:         rec.URL,
		Articles:    len(d.Articles),
		GeneratedAt: d.GeneratedAt,
	}
}

// DigestMetadata describes a single delivery for the whole batch.
func DigestMetadata(runID string, d *Digest) Metadata {
	return Metadata{
		RunID:       runID,
		Title:       "Digest " + d.Timestamp,
		Articles:    len(d.Articles),
		GeneratedAt: d.GeneratedAt,
	}
}
