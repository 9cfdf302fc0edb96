package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/c360studio/semdigest/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBotAPI struct {
	mu       sync.Mutex
	paths    []string
	messages []sendMessageRequest
	status   int
	reply    string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var msg sendMessageRequest
	_ = json.NewDecoder(r.Body).Decode(&msg)

	f.mu.Lock()
	f.paths = append(f.paths, r.URL.Path)
	f.messages = append(f.messages, msg)
	status, reply := f.status, f.reply
	f.mu.Unlock()

	if status == 0 {
		status, reply = http.StatusOK, `{"ok":true}`
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reply))
}

func (f *fakeBotAPI) sent() ([]string, []sendMessageRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...), append([]sendMessageRequest(nil), f.messages...)
}

func newSink(t *testing.T, api *fakeBotAPI) *Sink {
	t.Helper()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.APIURL = server.URL + "/"
	cfg.BotToken = "123:abc"
	cfg.ChatID = "-1001"
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)
	return s
}

func TestDeliver_HTMLPayloadSendsBody(t *testing.T) {
	api := &fakeBotAPI{}
	s := newSink(t, api)

	ok := s.Deliver(t.Context(), "<html><head><title>x</title></head><body><b>Hi</b></body></html>", pipeline.Metadata{})
	require.True(t, ok)

	paths, messages := api.sent()
	require.Len(t, messages, 1)
	assert.Equal(t, "/bot123:abc/sendMessage", paths[0])
	assert.Equal(t, sendMessageRequest{ChatID: "-1001", Text: "<b>Hi</b>", ParseMode: "HTML"}, messages[0])
}

func TestDeliver_MarkdownPayload(t *testing.T) {
	api := &fakeBotAPI{}
	s := newSink(t, api)

	require.True(t, s.Deliver(t.Context(), "# Digest\n\n*bold*", pipeline.Metadata{}))
	_, messages := api.sent()
	require.Len(t, messages, 1)
	assert.Equal(t, "Markdown", messages[0].ParseMode)
	assert.Equal(t, "# Digest\n\n*bold*", messages[0].Text)
}

func TestDeliver_CapsLongMessages(t *testing.T) {
	api := &fakeBotAPI{}
	s := newSink(t, api)

	require.True(t, s.Deliver(t.Context(), strings.Repeat("é", 5000), pipeline.Metadata{}))
	_, messages := api.sent()
	require.Len(t, messages, 1)
	text := messages[0].Text
	assert.Len(t, []rune(text), MaxMessageRunes)
	assert.True(t, strings.HasSuffix(text, "..."))
}

func TestDeliver_APIErrorReturnsFalse(t *testing.T) {
	api := &fakeBotAPI{status: http.StatusBadRequest, reply: `{"ok":false,"description":"Bad Request: chat not found"}`}
	s := newSink(t, api)
	assert.False(t, s.Deliver(t.Context(), "x", pipeline.Metadata{}))

	err := s.send(t.Context(), "x")
	assert.ErrorContains(t, err, "chat not found")

	api.mu.Lock()
	api.status, api.reply = http.StatusOK, `{"ok":false}`
	api.mu.Unlock()
	assert.False(t, s.Deliver(t.Context(), "x", pipeline.Metadata{}))
}

func TestDeliver_TransportErrorHidesToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIURL = "http://127.0.0.1:1"
	cfg.BotToken = "secret-token"
	cfg.ChatID = "1"
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)

	err = s.send(t.Context(), "x")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-token")
}

func TestCapMessage(t *testing.T) {
	assert.Equal(t, "short", capMessage("short"))
	exact := strings.Repeat("a", MaxMessageRunes)
	assert.Equal(t, exact, capMessage(exact))
}

func TestNewComponent(t *testing.T) {
	_, err := NewComponent(json.RawMessage(`{"chat_id":"1"}`), pipeline.Dependencies{})
	assert.Error(t, err)

	sink, err := NewComponent(json.RawMessage(`{"bot_token":"t","chat_id":"1"}`), pipeline.Dependencies{HTTPClient: http.DefaultClient})
	require.NoError(t, err)
	assert.Same(t, http.DefaultClient, sink.(*Sink).client)
}
