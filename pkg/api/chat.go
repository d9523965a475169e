package api

import "encoding/json"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatRequest is the body of POST /api/v1/chat.
//
// ConversationID is left empty on the first turn; the backend assigns one and
// the client echoes it on every later turn of the same session.
type ChatRequest struct {
	Message             string   `json:"message"`
	ConversationID      string   `json:"conversationId,omitempty"`
	Temperature         *float64 `json:"temperature,omitempty"`
	MaxTokens           *int     `json:"maxTokens,omitempty"`
	TopK                int      `json:"topK"`
	SimilarityThreshold float64  `json:"similarityThreshold"`
}

// SourceMetadata is the per-source metadata attached by the backend.
type SourceMetadata struct {
	DocumentType string `json:"documentType"`
	ProcessedAt  string `json:"processedAt"`
}

// Source is a retrieved document snippet attached to an assistant turn.
// Sources are point-in-time snapshots and are never mutated by the client.
type Source struct {
	DocumentID      string          `json:"documentId"`
	Content         string          `json:"content"`
	OriginalData    json.RawMessage `json:"originalData,omitempty"`
	SimilarityScore float64         `json:"similarityScore"`
	Metadata        SourceMetadata  `json:"metadata"`
}

// ChatMetadata is the usage block of a chat response.
type ChatMetadata struct {
	TokensUsed       int       `json:"tokensUsed"`
	ProcessingTime   int64     `json:"processingTime"`
	SimilarityScores []float64 `json:"similarityScores,omitempty"`
	LLMProvider      string    `json:"llmProvider,omitempty"`
	LLMModel         string    `json:"llmModel,omitempty"`
}

// ChatResponse is the body returned by POST /api/v1/chat.
type ChatResponse struct {
	Response       string       `json:"response"`
	ConversationID string       `json:"conversationId"`
	Sources        []Source     `json:"sources"`
	Metadata       ChatMetadata `json:"metadata"`
}

// Usage records what one assistant turn cost on the backend.
type Usage struct {
	TokensUsed       int       `json:"tokensUsed"`
	ProcessingTimeMs int64     `json:"processingTimeMs"`
	SimilarityScores []float64 `json:"similarityScores,omitempty"`
	LLMProvider      string    `json:"llmProvider,omitempty"`
	LLMModel         string    `json:"llmModel,omitempty"`
}

// UsageFromMetadata converts the wire metadata block into a Usage. Negative
// counters reported by a misbehaving backend are clamped to zero.
func UsageFromMetadata(m ChatMetadata) *Usage {
	u := &Usage{
		TokensUsed:       m.TokensUsed,
		ProcessingTimeMs: m.ProcessingTime,
		LLMProvider:      m.LLMProvider,
		LLMModel:         m.LLMModel,
	}
	if u.TokensUsed < 0 {
		u.TokensUsed = 0
	}
	if u.ProcessingTimeMs < 0 {
		u.ProcessingTimeMs = 0
	}
	if len(m.SimilarityScores) > 0 {
		u.SimilarityScores = append([]float64(nil), m.SimilarityScores...)
	}
	return u
}

// Message is one turn of a conversation. Backend conversation transcripts only
// carry role, content and timestamp; assistant turns produced in the current
// session additionally carry their sources and usage.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
	Sources   []Source  `json:"sources,omitempty"`
	Usage     *Usage    `json:"usage,omitempty"`
}
