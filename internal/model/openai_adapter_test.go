package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pagegen-backend/internal/config"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(content, finish string) string {
	reason := "null"
	if finish != "" {
		reason = fmt.Sprintf("%q", finish)
	}
	return fmt.Sprintf(`data: {"id":"c1","object":"chat.completion.chunk","model":"test","choices":[{"index":0,"delta":{"content":%q},"finish_reason":%s}]}`+"\n\n", content, reason)
}

func newStreamServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func drain(t *testing.T, reader *schema.StreamReader[*schema.Message]) (string, error) {
	t.Helper()
	defer reader.Close()

	var sb strings.Builder
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(msg.Content)
	}
}

func TestOpenAIStream_Complete(t *testing.T) {
	body := chunk("export default ", "") + chunk("function Page(){}", "") + chunk("", "stop") + "data: [DONE]\n\n"
	srv := newStreamServer(t, body)

	m, err := newOpenAIChatModel(context.Background(), config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "test"})
	require.NoError(t, err)

	reader, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("a page")})
	require.NoError(t, err)

	content, err := drain(t, reader)
	require.NoError(t, err)
	assert.Equal(t, "export default function Page(){}", content)
}

func TestOpenAIStream_MissingFinishReason(t *testing.T) {
	body := chunk("partial", "") + "data: [DONE]\n\n"
	srv := newStreamServer(t, body)

	m, err := newOpenAIChatModel(context.Background(), config.OpenAIConfig{APIKey: "k", BaseURL: srv.URL, Model: "test"})
	require.NoError(t, err)

	reader, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("a page")})
	require.NoError(t, err)

	content, err := drain(t, reader)
	assert.Equal(t, "partial", content)
	assert.True(t, errors.Is(err, ErrIncompleteStream))
}

func TestNewOpenAIChatModel_RequiresModel(t *testing.T) {
	_, err := newOpenAIChatModel(context.Background(), config.OpenAIConfig{APIKey: "k"})
	assert.Error(t, err)
}
