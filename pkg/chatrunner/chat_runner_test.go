package chatrunner

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/client"
	"github.com/go-go-golems/ragchat/pkg/client/clienttest"
	"github.com/stretchr/testify/require"
)

// syncBuffer is written to by the router goroutine and the chat loop.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func newBackend(t *testing.T) (*clienttest.Backend, *client.Client) {
	t.Helper()
	b := clienttest.New(t)
	var n atomic.Int32
	b.Handle(http.MethodPost, client.PathChat, func(w http.ResponseWriter, r *http.Request) {
		turn := n.Add(1)
		if strings.Contains(readBody(r), "fail") {
			clienttest.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "Internal", "message": "LLM provider unavailable"})
			return
		}
		clienttest.WriteJSON(w, http.StatusOK, api.ChatResponse{
			Response:       fmt.Sprintf("answer %d", turn),
			ConversationID: "conv-7",
			Sources:        []api.Source{{DocumentID: "doc-1", Content: "snippet", SimilarityScore: 0.8}},
		})
	})
	c, err := client.New(b.URL)
	require.NoError(t, err)
	return b, c
}

func readBody(r *http.Request) string {
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r.Body)
	return buf.String()
}

func TestChatBuilder_Validation(t *testing.T) {
	_, err := NewChatBuilder().Build()
	require.Error(t, err)

	_, c := newBackend(t)
	_, err = NewChatBuilder().WithClient(c).WithMode(RunModeBlocking).Build()
	require.Error(t, err)

	_, err = NewChatBuilder().WithClient(c).WithMode("stream").Build()
	require.Error(t, err)

	_, err = NewChatBuilder().WithContext(nil).WithClient(c).Build() //nolint:staticcheck
	require.Error(t, err)
}

func TestRunBlocking(t *testing.T) {
	b, c := newBackend(t)
	var out bytes.Buffer
	cs, err := NewChatBuilder().
		WithClient(c).
		WithMode(RunModeBlocking).
		WithMessage("What is the average price?").
		WithOutputWriter(&out).
		WithStatusWriter(&bytes.Buffer{}).
		Build()
	require.NoError(t, err)
	require.NoError(t, cs.Run())

	require.Contains(t, out.String(), "answer 1")
	require.Contains(t, out.String(), "doc-1")
	require.Equal(t, 1, b.Count(http.MethodPost, client.PathChat))
	require.Equal(t, "conv-7", cs.Backend().Store().ConversationID())
}

func TestRunChat(t *testing.T) {
	b, c := newBackend(t)
	var out bytes.Buffer
	status := &syncBuffer{}
	cs, err := NewChatBuilder().
		WithContext(context.Background()).
		WithClient(c).
		WithConversationID("conv-7").
		WithInput(strings.NewReader("first question\n\nplease fail\n/status\nsecond question\n/quit\nnever sent\n")).
		WithOutputWriter(&out).
		WithStatusWriter(status).
		Build()
	require.NoError(t, err)
	require.NoError(t, cs.Run())

	require.Equal(t, 3, b.Count(http.MethodPost, client.PathChat))
	require.Contains(t, out.String(), "answer 1")
	require.Contains(t, out.String(), "answer 3")
	require.NotContains(t, out.String(), "never sent")
	require.Contains(t, status.String(), "chat:")
	require.Equal(t, 1, strings.Count(status.String(), "LLM provider unavailable"))

	msgs := cs.Backend().Store().Messages()
	// the failed turn keeps its user message
	require.Len(t, msgs, 5)
	require.Equal(t, "please fail", msgs[2].Content)

	for _, r := range b.Requests() {
		require.Contains(t, string(r.Body), `"conversationId":"conv-7"`)
	}
}

func TestPrintError_TransportFailureIsShown(t *testing.T) {
	_, c := newBackend(t)
	var status bytes.Buffer
	cs, err := NewChatBuilder().WithClient(c).WithStatusWriter(&status).Build()
	require.NoError(t, err)

	cs.printError(&client.TransportError{Kind: client.KindTimeout, Method: http.MethodPost, Path: client.PathChat})
	require.Contains(t, status.String(), "The request timed out. Please try again.")

	status.Reset()
	cs.printError(&client.TransportError{
		Kind:    client.KindBackend,
		Status:  http.StatusInternalServerError,
		Payload: &api.APIError{Message: "LLM provider unavailable"},
	})
	require.Contains(t, status.String(), "chat:")
	require.Contains(t, status.String(), "LLM provider unavailable")
}
