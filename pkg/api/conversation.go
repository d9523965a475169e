package api

// Conversation is a backend-side conversation transcript.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Version   string  `json:"version"`
}

// Healthy reports whether the backend declared itself operational.
func (h *HealthResponse) Healthy() bool {
	if h == nil {
		return false
	}
	switch h.Status {
	case "ok", "OK", "healthy", "up":
		return true
	}
	return false
}

// APIError is the structured error body the backend attaches to non-2xx replies.
type APIError struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Text returns the most descriptive human-readable part of the error body.
func (e *APIError) Text() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
