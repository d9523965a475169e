package render

import (
	"encoding/json"
	"testing"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Answer(t *testing.T) {
	r := New("")
	out, err := r.Answer(api.Message{
		Role:    api.RoleAssistant,
		Content: "The average price is $42.",
		Sources: []api.Source{{
			DocumentID:      "doc-1",
			Content:         "Balloon arch\n\n  $42 per meter",
			SimilarityScore: 0.912,
			Metadata:        api.SourceMetadata{DocumentType: "product"},
		}},
		Usage: &api.Usage{TokensUsed: 12, ProcessingTimeMs: 340, LLMProvider: "openai", LLMModel: "gpt-4o-mini"},
	})
	require.NoError(t, err)
	require.Contains(t, out, "The average price is $42.")
	require.Contains(t, out, "1. **doc-1** (91.2%, product)")
	require.Contains(t, out, "Balloon arch $42 per meter")
	require.Contains(t, out, "12 tokens · 340 ms · openai/gpt-4o-mini")
}

func TestRenderer_SearchResults(t *testing.T) {
	r := New("")
	out, err := r.SearchResults(nil)
	require.NoError(t, err)
	require.Contains(t, out, "No documents found.")

	out, err = r.SearchResults([]api.SearchResult{
		{
			DocumentID:         "doc-7",
			TextRepresentation: "name: Smartphone X",
			SimilarityScore:    0.5,
			OriginalData:       json.RawMessage(`{"name":"Smartphone X"}`),
			Metadata:           api.SearchResultMetadata{DocumentType: "product"},
		},
	})
	require.NoError(t, err)
	require.Contains(t, out, "## 1. doc-7")
	require.Contains(t, out, "**Score:** 50.0%")
	require.Contains(t, out, "\"name\": \"Smartphone X\"")
}

func TestRenderer_EmbedAndConversation(t *testing.T) {
	r := New("")
	out, err := r.Embed(api.EmbedRecord{
		DocumentID:         "doc-9",
		EmbeddingDimension: 1536,
		Metadata:           api.EmbedMetadata{FieldCount: 4, DataTypes: []string{"string", "number"}},
	})
	require.NoError(t, err)
	require.Contains(t, out, "Document doc-9")
	require.Contains(t, out, "1536")
	require.Contains(t, out, "string, number")

	out, err = r.Conversation(api.Conversation{ID: "c1", Messages: []api.Message{{Role: api.RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	require.Contains(t, out, "Conversation c1")
	require.Contains(t, out, "**user**")
}

func TestRenderer_Glamour(t *testing.T) {
	out, err := New("notty").SearchResults(nil)
	require.NoError(t, err)
	require.Contains(t, out, "No documents found.")
}

func TestScoreBand(t *testing.T) {
	require.Equal(t, "high", ScoreBand(0.8))
	require.Equal(t, "medium", ScoreBand(0.79))
	require.Equal(t, "low", ScoreBand(0.4))
	require.Equal(t, "poor", ScoreBand(0.1))
	require.Contains(t, Score(0.912), "91.2%")
}

func TestStatusLine(t *testing.T) {
	line := StatusLine(session.FlowSearch, session.Status{Phase: session.Failed, Reason: "The request timed out. Please try again."})
	require.Contains(t, line, "search:")
	require.Contains(t, line, "timed out")
}
