// Package requests turns user input plus session parameters into typed
// backend payloads. Builders validate locally so malformed input never costs
// a network call.
package requests

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/pkg/errors"
)

const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.6
	DefaultSearchLimit         = 10
)

// SearchLimits are the result limits the backend accepts.
var SearchLimits = []int{5, 10, 20, 50}

// ValidationError reports user input that was rejected before contacting the backend.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Field + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ChatOption tweaks a chat request beyond its defaults.
type ChatOption func(*api.ChatRequest)

func WithTopK(k int) ChatOption {
	return func(r *api.ChatRequest) { r.TopK = k }
}

func WithSimilarityThreshold(th float64) ChatOption {
	return func(r *api.ChatRequest) { r.SimilarityThreshold = th }
}

func WithTemperature(t float64) ChatOption {
	return func(r *api.ChatRequest) { r.Temperature = &t }
}

func WithMaxTokens(n int) ChatOption {
	return func(r *api.ChatRequest) { r.MaxTokens = &n }
}

// BuildChatRequest builds the body of a chat turn. text must be non-empty
// after trimming; it is sent as typed. An empty conversationID means "start a
// new conversation" and is omitted from the payload.
func BuildChatRequest(text string, conversationID string, opts ...ChatOption) (api.ChatRequest, error) {
	if strings.TrimSpace(text) == "" {
		return api.ChatRequest{}, &ValidationError{Field: "message", Message: "message cannot be empty"}
	}
	req := api.ChatRequest{
		Message:             text,
		ConversationID:      strings.TrimSpace(conversationID),
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
	}
	for _, opt := range opts {
		opt(&req)
	}
	if req.TopK <= 0 {
		return api.ChatRequest{}, &ValidationError{Field: "topK", Message: "topK must be positive"}
	}
	if req.SimilarityThreshold < 0 || req.SimilarityThreshold > 1 {
		return api.ChatRequest{}, &ValidationError{Field: "similarityThreshold", Message: "similarity threshold must be within [0,1]"}
	}
	if req.Temperature != nil && (*req.Temperature < 0 || *req.Temperature > 2) {
		return api.ChatRequest{}, &ValidationError{Field: "temperature", Message: "temperature must be within [0,2]"}
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return api.ChatRequest{}, &ValidationError{Field: "maxTokens", Message: "maxTokens must be positive"}
	}
	return req, nil
}

// ValidSearchLimit reports whether limit is one of SearchLimits.
func ValidSearchLimit(limit int) bool {
	for _, l := range SearchLimits {
		if l == limit {
			return true
		}
	}
	return false
}

// BuildSearchRequest builds the parameters of a semantic search.
func BuildSearchRequest(query string, limit int, includeScore bool) (api.SearchRequest, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return api.SearchRequest{}, &ValidationError{Field: "query", Message: "Please enter a search query"}
	}
	if !ValidSearchLimit(limit) {
		return api.SearchRequest{}, &ValidationError{Field: "limit", Message: "limit must be one of 5, 10, 20, 50"}
	}
	return api.SearchRequest{Query: query, Limit: limit, IncludeScore: includeScore}, nil
}

// BuildEmbedRequest parses raw user input as a JSON document. The document is
// compacted and otherwise forwarded untouched.
func BuildEmbedRequest(jsonPayload string) (api.EmbedRequest, error) {
	if strings.TrimSpace(jsonPayload) == "" {
		return api.EmbedRequest{}, &ValidationError{Field: "document", Message: "Please enter valid JSON data"}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonPayload)); err != nil {
		return api.EmbedRequest{}, &ValidationError{
			Field:   "document",
			Message: "Invalid JSON format. Please check your input.",
			Err:     err,
		}
	}
	return api.EmbedRequest{Document: json.RawMessage(buf.Bytes())}, nil
}

// BuildDeleteRequest validates a document id for deletion.
func BuildDeleteRequest(documentID string) (string, error) {
	id := strings.TrimSpace(documentID)
	if id == "" {
		return "", &ValidationError{Field: "documentId", Message: "document id cannot be empty"}
	}
	return id, nil
}
