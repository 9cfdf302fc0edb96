package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/c360studio/semdigest/llm"
	"github.com/c360studio/semdigest/llm/testutil"
	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStage(t *testing.T, mock *testutil.MockLLMClient) *Stage {
	t.Helper()
	s, err := New(DefaultConfig(), mock, nil)
	require.NoError(t, err)
	return s
}

func TestTransform_Summarizes(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{Content: "  A short summary.\n"}}}
	s := newStage(t, mock)

	rec, err := s.Transform(context.Background(), &record.Record{ID: 1, Content: "Long article body"})
	require.NoError(t, err)

	assert.Equal(t, "A short summary.", rec.Summary)
	assert.False(t, rec.Degraded())

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "summarization", reqs[0].Capability)
	require.NotNil(t, reqs[0].Temperature)
	assert.Zero(t, *reqs[0].Temperature)
	require.Len(t, reqs[0].Messages, 1)
	assert.Contains(t, reqs[0].Messages[0].Content, "2-3 sentences")
	assert.Contains(t, reqs[0].Messages[0].Content, "Long article body")
}

func TestTransform_NoContent(t *testing.T) {
	tests := []struct {
		name string
		rec  *record.Record
	}{
		{name: "empty", rec: &record.Record{ID: 1}},
		{name: "whitespace", rec: &record.Record{ID: 2, Content: "  \n"}},
		{name: "degraded content", rec: func() *record.Record {
			r := &record.Record{ID: 3, Content: "Error fetching content: boom"}
			r.Degrade("content_fetcher", record.FieldContent, errors.New("boom"))
			return r
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &testutil.MockLLMClient{}
			rec, err := newStage(t, mock).Transform(context.Background(), tt.rec)
			require.NoError(t, err)

			assert.Equal(t, NoContentSummary, rec.Summary)
			assert.True(t, rec.FieldDegraded(record.FieldSummary))
			assert.Zero(t, mock.GetCallCount())
		})
	}
}

func TestTransform_LLMErrorDegrades(t *testing.T) {
	mock := &testutil.MockLLMClient{Err: errors.New("rate limited")}
	rec, err := newStage(t, mock).Transform(context.Background(), &record.Record{ID: 1, Content: "body"})
	require.NoError(t, err)

	assert.Equal(t, "Error generating summary: rate limited", rec.Summary)
	assert.True(t, rec.FieldDegraded(record.FieldSummary))
}

func TestNewComponent(t *testing.T) {
	_, err := NewComponent(nil, pipeline.Dependencies{})
	assert.ErrorIs(t, err, pipeline.ErrMissingDependency)

	deps := pipeline.Dependencies{LLM: &testutil.MockLLMClient{}}
	stage, err := NewComponent(json.RawMessage(`{"capability":"fast","max_tokens":200}`), deps)
	require.NoError(t, err)
	assert.Equal(t, "fast", stage.(*Stage).cfg.Capability)

	_, err = NewComponent(json.RawMessage(`{"capability":"poetry"}`), deps)
	assert.Error(t, err)
}
