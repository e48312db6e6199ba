package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/sentinel/pkg/llm"
	"github.com/kadirpekel/sentinel/pkg/message"
	"github.com/kadirpekel/sentinel/pkg/orchestrator"
	"github.com/kadirpekel/sentinel/pkg/session"
	"github.com/kadirpekel/sentinel/pkg/tool"
)

type singleAnswerLLM struct{}

func (singleAnswerLLM) Stream(ctx context.Context, messages []message.Message, tools []tool.Descriptor, cfg llm.RunConfig) (<-chan llm.Chunk, error) {
	ch := make(chan llm.Chunk, 2)
	ch <- llm.Chunk{Kind: llm.ChunkText, Text: "hello there"}
	ch <- llm.Chunk{Kind: llm.ChunkEnd, Finish: llm.FinishStop}
	close(ch)
	return ch, nil
}

func newTestAPI() *API {
	r := tool.NewRegistry()
	_ = r.Register(tool.NewThink())
	o := &orchestrator.Orchestrator{
		Sessions: session.NewMemoryStore(),
		LLM:      singleAnswerLLM{},
		Tools:    r,
	}
	return &API{Orchestrator: o}
}

func TestAsk_StreamsSSEFramesAndCommitsSession(t *testing.T) {
	api := newTestAPI()
	srv := httptest.NewServer(api.Router())
	defer srv.Close()

	body, _ := json.Marshal(askRequest{Question: "hi"})
	resp, err := http.Post(srv.URL+"/sessions/s1/ask", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "event: token")
	assert.Contains(t, buf.String(), "event: done")

	info := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions/s1", nil)
	api.Router().ServeHTTP(info, req)
	assert.Equal(t, http.StatusOK, info.Code)
	assert.Contains(t, info.Body.String(), `"message_count":2`)
}

func TestAsk_MissingQuestionReturnsBadRequest(t *testing.T) {
	api := newTestAPI()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sessions/s1/ask", bytes.NewReader([]byte(`{}`)))
	api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearAndDeleteSession(t *testing.T) {
	api := newTestAPI()
	require.NoError(t, api.Orchestrator.Sessions.Append(context.Background(), "s1",
		message.User("hi"), message.Assistant("hello")))

	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/s1/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	count, err := api.Orchestrator.Sessions.MessageCount(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	rec = httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestListSessions(t *testing.T) {
	api := newTestAPI()
	require.NoError(t, api.Orchestrator.Sessions.Append(context.Background(), "s1",
		message.User("hi"), message.Assistant("hello")))

	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "s1")
}
