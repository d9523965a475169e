package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/client"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestStore_InitialState(t *testing.T) {
	s := NewStore()
	st := s.Snapshot()
	require.Empty(t, st.ConversationID)
	require.Empty(t, st.Messages)
	for _, f := range Flows {
		require.Equal(t, Idle, st.Status(f).Phase)
	}
}

func TestStore_ChatRoundTrip(t *testing.T) {
	var transitions []Transition
	s := NewStore(WithClock(fixedClock()), WithObserver(func(tr Transition) {
		transitions = append(transitions, tr)
	}))

	id, err := s.BeginChat("What is the average price?")
	require.NoError(t, err)
	require.Empty(t, id)
	require.Equal(t, Pending, s.Status(FlowChat).Phase)

	err = s.ChatSucceeded(api.ChatResponse{
		Response:       "$42",
		ConversationID: "abc123",
		Sources:        []api.Source{},
		Metadata:       api.ChatMetadata{TokensUsed: 12, ProcessingTime: 340},
	})
	require.NoError(t, err)

	st := s.Snapshot()
	require.Equal(t, "abc123", st.ConversationID)
	require.Len(t, st.Messages, 2)
	require.Equal(t, api.RoleUser, st.Messages[0].Role)
	require.Equal(t, api.RoleAssistant, st.Messages[1].Role)
	require.Equal(t, "$42", st.Messages[1].Content)
	require.Equal(t, 12, st.Messages[1].Usage.TokensUsed)
	require.Equal(t, int64(340), st.Messages[1].Usage.ProcessingTimeMs)
	require.Equal(t, Succeeded, st.Chat.Phase)

	require.Len(t, transitions, 2)
	require.Equal(t, EventBegin, transitions[0].Event)
	require.Equal(t, EventSucceeded, transitions[1].Event)
	require.Equal(t, "abc123", transitions[1].ConversationID)
	require.Equal(t, 2, transitions[1].MessageCount)

	id, err = s.BeginChat("And the median?")
	require.NoError(t, err)
	require.Equal(t, "abc123", id)
}

func TestStore_ChatBusy(t *testing.T) {
	s := NewStore()
	_, err := s.BeginChat("first")
	require.NoError(t, err)

	_, err = s.BeginChat("second")
	require.Error(t, err)
	require.True(t, IsBusy(err))
	require.Len(t, s.Messages(), 1)
	require.Equal(t, "first", s.Messages()[0].Content)
}

func TestStore_MessagesAppendInOrder(t *testing.T) {
	s := NewStore()
	const n = 5
	for i := 0; i < n; i++ {
		_, err := s.BeginChat(fmt.Sprintf("q%d", i))
		require.NoError(t, err)
		require.NoError(t, s.ChatSucceeded(api.ChatResponse{Response: fmt.Sprintf("a%d", i), ConversationID: "c"}))
	}
	msgs := s.Messages()
	require.Len(t, msgs, 2*n)
	for i := 0; i < n; i++ {
		require.Equal(t, fmt.Sprintf("q%d", i), msgs[2*i].Content)
		require.Equal(t, fmt.Sprintf("a%d", i), msgs[2*i+1].Content)
	}
}

func TestStore_ChatFailedKeepsHistory(t *testing.T) {
	s := NewStore()
	_, err := s.BeginChat("hello")
	require.NoError(t, err)
	require.NoError(t, s.ChatSucceeded(api.ChatResponse{Response: "hi", ConversationID: "c1"}))

	_, err = s.BeginChat("again")
	require.NoError(t, err)
	cause := &client.TransportError{Kind: client.KindTimeout, Method: "POST", Path: "/api/v1/chat"}
	require.NoError(t, s.ChatFailed(cause))

	st := s.Snapshot()
	require.Equal(t, Failed, st.Chat.Phase)
	require.Equal(t, "The request timed out. Please try again.", st.Chat.Reason)
	require.True(t, client.IsTimeout(st.Chat.Err))
	require.Equal(t, "c1", st.ConversationID)
	require.Len(t, st.Messages, 3)

	// a failed flow can start again
	_, err = s.BeginChat("once more")
	require.NoError(t, err)
}

func TestStore_CompletionWithoutPending(t *testing.T) {
	s := NewStore()
	require.ErrorIs(t, s.ChatSucceeded(api.ChatResponse{Response: "late"}), ErrNotPending)
	require.ErrorIs(t, s.SearchFailed(errors.New("boom")), ErrNotPending)
	require.ErrorIs(t, s.EmbedSucceeded(api.EmbedRecord{}), ErrNotPending)
	require.Empty(t, s.Messages())
}

func TestStore_FlowsAreIndependent(t *testing.T) {
	s := NewStore()
	_, err := s.BeginChat("hi")
	require.NoError(t, err)
	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "q", Limit: 5}))
	require.NoError(t, s.BeginEmbed(api.EmbedRequest{Document: []byte(`{}`)}))

	require.True(t, IsBusy(s.BeginSearch(api.SearchRequest{Query: "q2", Limit: 5})))
	require.True(t, IsBusy(s.BeginEmbed(api.EmbedRequest{Document: []byte(`{}`)})))

	require.NoError(t, s.EmbedFailed(errors.New("boom")))
	st := s.Snapshot()
	require.Equal(t, Pending, st.Chat.Phase)
	require.Equal(t, Pending, st.Search.Phase)
	require.Equal(t, Failed, st.Embed.Phase)
	require.Equal(t, "boom", st.Embed.Reason)
}

func results(ids ...string) []api.SearchResult {
	ret := make([]api.SearchResult, len(ids))
	for i, id := range ids {
		ret[i] = api.SearchResult{DocumentID: id, SimilarityScore: 1 - float64(i)/10}
	}
	return ret
}

func TestStore_SearchReplacesResults(t *testing.T) {
	s := NewStore()
	first := api.SearchRequest{Query: "balloons", Limit: 10, IncludeScore: true}
	require.NoError(t, s.BeginSearch(first))
	require.NoError(t, s.SearchSucceeded(api.SearchResponse{Results: results("a", "b", "c")}))

	st := s.Snapshot()
	require.Equal(t, first, *st.LastSearch)
	require.Len(t, st.SearchResults, 3)

	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "arches", Limit: 5}))
	require.NoError(t, s.SearchSucceeded(api.SearchResponse{Results: results("d")}))
	st = s.Snapshot()
	require.Equal(t, "arches", st.LastSearch.Query)
	require.Equal(t, results("d"), st.SearchResults)
}

func TestStore_SearchTimeoutKeepsResults(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "old", Limit: 10}))
	require.NoError(t, s.SearchSucceeded(api.SearchResponse{Results: results("a", "b")}))

	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "balloon arches", Limit: 10}))
	require.NoError(t, s.SearchFailed(&client.TransportError{Kind: client.KindTimeout}))

	st := s.Snapshot()
	require.Equal(t, Failed, st.Search.Phase)
	require.True(t, client.IsTimeout(st.Search.Err))
	require.Equal(t, results("a", "b"), st.SearchResults)
	require.Equal(t, "old", st.LastSearch.Query)
}

func TestStore_DeleteDocument(t *testing.T) {
	s := NewStore()
	_, err := s.BeginChat("hi")
	require.NoError(t, err)
	require.NoError(t, s.ChatSucceeded(api.ChatResponse{
		Response: "answer",
		Sources:  []api.Source{{DocumentID: "b", Content: "snippet"}},
	}))
	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "q", Limit: 5}))
	require.NoError(t, s.SearchSucceeded(api.SearchResponse{Results: results("a", "b", "c", "b")}))

	require.NoError(t, s.BeginDelete("b"))
	require.True(t, IsBusy(s.BeginDelete("b")))
	require.NoError(t, s.BeginDelete("c"))

	require.NoError(t, s.DeleteDocument("b"))
	st := s.Snapshot()
	require.Equal(t, []string{"a", "c"}, ids(st.SearchResults))
	require.Equal(t, "b", st.Messages[1].Sources[0].DocumentID)
	require.NotContains(t, st.PendingDeletes, "b")
	require.Contains(t, st.PendingDeletes, "c")

	require.NoError(t, s.DeleteFailed("c", errors.New("nope")))
	st = s.Snapshot()
	require.Equal(t, []string{"a", "c"}, ids(st.SearchResults))
	require.Equal(t, Failed, st.Search.Phase)
	require.Empty(t, st.PendingDeletes)
}

func TestStore_DeleteFailedDuringSearch(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginDelete("a"))
	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "q", Limit: 5}))
	require.NoError(t, s.DeleteFailed("a", errors.New("nope")))
	require.Equal(t, Pending, s.Status(FlowSearch).Phase)
}

func TestStore_DeleteConfirmedDuringSearch(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "q", Limit: 5}))
	require.NoError(t, s.SearchSucceeded(api.SearchResponse{Results: results("a", "b", "c")}))

	require.NoError(t, s.BeginDelete("b"))
	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "q2", Limit: 5}))
	require.NoError(t, s.DeleteDocument("b"))
	require.Equal(t, []string{"a", "c"}, ids(s.SearchResults()))

	// the in-flight search was answered before the delete reached the index
	require.NoError(t, s.SearchSucceeded(api.SearchResponse{Results: results("b", "d")}))
	require.Equal(t, []string{"d"}, ids(s.SearchResults()))

	// only the search that was in flight is filtered
	require.NoError(t, s.BeginSearch(api.SearchRequest{Query: "q3", Limit: 5}))
	require.NoError(t, s.SearchSucceeded(api.SearchResponse{Results: results("b")}))
	require.Equal(t, []string{"b"}, ids(s.SearchResults()))
}

func TestStore_Resume(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.BeginResume())
	require.True(t, IsBusy(s.BeginResume()))
	conv := api.Conversation{
		ID: "c9",
		Messages: []api.Message{
			{Role: api.RoleUser, Content: "q"},
			{Role: api.RoleAssistant, Content: "a"},
		},
	}
	require.NoError(t, s.ResumeSucceeded(conv))
	st := s.Snapshot()
	require.Equal(t, "c9", st.ConversationID)
	require.Len(t, st.Messages, 2)

	require.ErrorIs(t, s.BeginResume(), ErrSessionNotEmpty)

	id, err := s.BeginChat("follow-up")
	require.NoError(t, err)
	require.Equal(t, "c9", id)
}

func TestStore_SnapshotIsolation(t *testing.T) {
	s := NewStore()
	_, err := s.BeginChat("hi")
	require.NoError(t, err)
	st := s.Snapshot()
	st.Messages[0].Content = "changed"
	st.Messages = append(st.Messages, api.Message{Content: "extra"})
	require.Len(t, s.Messages(), 1)
	require.Equal(t, "hi", s.Messages()[0].Content)
}

func ids(rs []api.SearchResult) []string {
	ret := make([]string, 0, len(rs))
	for _, r := range rs {
		ret = append(ret, r.DocumentID)
	}
	return ret
}
