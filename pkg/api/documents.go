package api

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// SearchResultMetadata is the metadata block of a search hit.
type SearchResultMetadata struct {
	ContentHash  string `json:"contentHash"`
	ProcessedAt  string `json:"processedAt"`
	DocumentType string `json:"documentType"`
}

// SearchResult is one ranked hit of a semantic search.
type SearchResult struct {
	DocumentID         string               `json:"documentId"`
	OriginalData       json.RawMessage      `json:"originalData,omitempty"`
	TextRepresentation string               `json:"textRepresentation"`
	SimilarityScore    float64              `json:"similarityScore"`
	Metadata           SearchResultMetadata `json:"metadata"`
}

// SearchResponse is the body returned by GET /api/v1/search. Results are ranked
// by descending similarity by the backend and are kept in that order.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchRequest carries the query parameters of GET /api/v1/search.
type SearchRequest struct {
	Query        string
	Limit        int
	IncludeScore bool
}

// Values encodes the request as the backend's query string parameters.
func (r SearchRequest) Values() url.Values {
	v := url.Values{}
	v.Set("q", r.Query)
	v.Set("limit", strconv.Itoa(r.Limit))
	v.Set("includeScore", strconv.FormatBool(r.IncludeScore))
	return v
}

// EmbedRequest wraps an arbitrary structured document for POST /api/v1/embed.
// The document is opaque to the client and forwarded verbatim.
type EmbedRequest struct {
	Document json.RawMessage
}

// EmbedMetadata describes how the backend processed a document.
type EmbedMetadata struct {
	FieldCount   int      `json:"fieldCount"`
	NestedLevels int      `json:"nestedLevels"`
	DataTypes    []string `json:"dataTypes"`
	DocumentType string   `json:"documentType"`
	ProcessedAt  string   `json:"processedAt"`
}

// EmbedRecord is the body returned by the embed and example endpoints.
type EmbedRecord struct {
	Success            bool          `json:"success"`
	DocumentID         string        `json:"documentId"`
	ContentHash        string        `json:"contentHash"`
	TextRepresentation string        `json:"textRepresentation"`
	EmbeddingDimension int           `json:"embeddingDimension"`
	Metadata           EmbedMetadata `json:"metadata"`
}

// DeleteResponse is returned by the document and conversation delete endpoints.
type DeleteResponse struct {
	Success bool `json:"success"`
}

// SampleDataSummary reports how many bundled records the backend ingested.
type SampleDataSummary struct {
	Total      int `json:"total,omitempty"`
	Successful int `json:"successful"`
	Failed     int `json:"failed,omitempty"`
}

// SampleDataResponse is returned by POST /api/v1/quick-load-sample-data.
type SampleDataResponse struct {
	Success bool              `json:"success"`
	Summary SampleDataSummary `json:"summary"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
}
