package commentsummarizer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/c360studio/semdigest/llm"
	"github.com/c360studio/semdigest/llm/testutil"
	"github.com/c360studio/semdigest/pipeline"
	"github.com/c360studio/semdigest/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoMock() *testutil.MockLLMClient {
	return &testutil.MockLLMClient{Reply: func(req llm.Request) (string, error) {
		body := req.Messages[0].Content
		return " summary of " + body[strings.LastIndex(body, "\n")+1:] + " ", nil
	}}
}

func TestTransform_SummarizesNonEmptyComments(t *testing.T) {
	mock := echoMock()
	s, err := New(DefaultConfig(), mock, nil)
	require.NoError(t, err)

	rec, err := s.Transform(context.Background(), &record.Record{ID: 1, Comments: []string{"first", "", "  ", "second"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"summary of first", "summary of second"}, rec.CommentSummaries)
	assert.Equal(t, 2, mock.GetCallCount())
	assert.Contains(t, mock.Requests()[0].Messages[0].Content, "1-2 sentence")
}

func TestTransform_NoComments(t *testing.T) {
	mock := echoMock()
	s, err := New(DefaultConfig(), mock, nil)
	require.NoError(t, err)

	rec, err := s.Transform(context.Background(), &record.Record{ID: 1})
	require.NoError(t, err)
	assert.NotNil(t, rec.CommentSummaries)
	assert.Empty(t, rec.CommentSummaries)
	assert.False(t, rec.Degraded())
	assert.Zero(t, mock.GetCallCount())
}

func TestTransform_MaxComments(t *testing.T) {
	mock := echoMock()
	s, err := New(Config{Capability: "fast", MaxComments: 1}, mock, nil)
	require.NoError(t, err)

	rec, err := s.Transform(context.Background(), &record.Record{ID: 1, Comments: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"summary of a"}, rec.CommentSummaries)
	assert.Equal(t, 1, mock.GetCallCount())
}

func TestTransform_AnyFailureEmptiesSummaries(t *testing.T) {
	calls := 0
	mock := &testutil.MockLLMClient{Reply: func(llm.Request) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("timeout")
		}
		return "ok", nil
	}}
	s, err := New(DefaultConfig(), mock, nil)
	require.NoError(t, err)

	rec, err := s.Transform(context.Background(), &record.Record{ID: 1, Comments: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Empty(t, rec.CommentSummaries)
	assert.True(t, rec.FieldDegraded(record.FieldCommentSummaries))
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestNewComponent(t *testing.T) {
	_, err := NewComponent(nil, pipeline.Dependencies{})
	assert.ErrorIs(t, err, pipeline.ErrMissingDependency)

	_, err = NewComponent(json.RawMessage(`{"max_comments":-1}`), pipeline.Dependencies{LLM: echoMock()})
	assert.Error(t, err)
}
