package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/pkg/errors"
)

const (
	PathHealth              = "/health"
	PathEmbed               = "/api/v1/embed"
	PathExample             = "/api/v1/example"
	PathSearch              = "/api/v1/search"
	PathDocument            = "/api/v1/document"
	PathChat                = "/api/v1/chat"
	PathConversations       = "/api/v1/conversations"
	PathQuickLoadSampleData = "/api/v1/quick-load-sample-data"
)

// Health returns the backend health report. Answers are reused for the
// configured health TTL.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	if c.health != nil {
		if v, ok := c.health.Get(healthCacheKey); ok {
			h := v.(api.HealthResponse)
			return &h, nil
		}
	}
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, PathHealth, nil, nil, &out); err != nil {
		return nil, err
	}
	if c.health != nil {
		c.health.SetDefault(healthCacheKey, out)
	}
	return &out, nil
}

// Embed submits a structured document for indexing.
func (c *Client) Embed(ctx context.Context, req api.EmbedRequest) (*api.EmbedRecord, error) {
	if len(req.Document) == 0 {
		return nil, errors.New("embed request has no document")
	}
	var out api.EmbedRecord
	if err := c.do(ctx, http.MethodPost, PathEmbed, req.Document, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProcessExample asks the backend to index its bundled example document.
func (c *Client) ProcessExample(ctx context.Context) (*api.EmbedRecord, error) {
	var out api.EmbedRecord
	if err := c.do(ctx, http.MethodPost, PathExample, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search runs a semantic search.
func (c *Client) Search(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error) {
	var out api.SearchResponse
	if err := c.do(ctx, http.MethodGet, PathSearch, nil, req.Values(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDocument fetches a stored document. The shape is backend-defined and
// returned untouched.
func (c *Client) GetDocument(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Call(ctx, http.MethodGet, idPath(PathDocument, id), nil, nil)
}

// DeleteDocument removes a document from the index.
func (c *Client) DeleteDocument(ctx context.Context, id string) (*api.DeleteResponse, error) {
	var out api.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, idPath(PathDocument, id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat sends one conversation turn.
func (c *Client) Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	var out api.ChatResponse
	if err := c.do(ctx, http.MethodPost, PathChat, req, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches a conversation transcript.
func (c *Client) GetConversation(ctx context.Context, id string) (*api.Conversation, error) {
	var out api.Conversation
	if err := c.do(ctx, http.MethodGet, idPath(PathConversations, id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations returns every conversation the backend knows about.
func (c *Client) ListConversations(ctx context.Context) ([]api.Conversation, error) {
	var out []api.Conversation
	if err := c.do(ctx, http.MethodGet, PathConversations, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteConversation deletes a conversation on the backend.
func (c *Client) DeleteConversation(ctx context.Context, id string) (*api.DeleteResponse, error) {
	var out api.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, idPath(PathConversations, id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuickLoadSampleData asks the backend to ingest its bundled sample dataset.
func (c *Client) QuickLoadSampleData(ctx context.Context) (*api.SampleDataResponse, error) {
	var out api.SampleDataResponse
	if err := c.do(ctx, http.MethodPost, PathQuickLoadSampleData, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
