package session

import (
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
)

// State is a point-in-time view of a session. Values returned by Store are
// deep copies and can be kept or modified freely by the caller.
type State struct {
	ConversationID string
	Messages       []api.Message

	Chat   Status
	Search Status
	Embed  Status

	// LastSearch is the request that produced SearchResults.
	LastSearch    *api.SearchRequest
	SearchResults []api.SearchResult
	// LastEmbed is the most recently processed document; no history is kept.
	LastEmbed *api.EmbedRecord

	// PendingDeletes holds document ids whose deletion is in flight.
	PendingDeletes map[string]struct{}
}

// Status returns the status of flow f.
func (s State) Status(f Flow) Status {
	switch f {
	case FlowChat:
		return s.Chat
	case FlowSearch:
		return s.Search
	case FlowEmbed:
		return s.Embed
	}
	return Status{}
}

func (s *State) setStatus(f Flow, st Status) {
	switch f {
	case FlowChat:
		s.Chat = st
	case FlowSearch:
		s.Search = st
	case FlowEmbed:
		s.Embed = st
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	ret := s
	ret.Messages = cloneMessages(s.Messages)
	ret.SearchResults = cloneResults(s.SearchResults)
	if s.LastSearch != nil {
		ls := *s.LastSearch
		ret.LastSearch = &ls
	}
	if s.LastEmbed != nil {
		le := *s.LastEmbed
		le.Metadata.DataTypes = append([]string(nil), s.LastEmbed.Metadata.DataTypes...)
		ret.LastEmbed = &le
	}
	if s.PendingDeletes != nil {
		ret.PendingDeletes = make(map[string]struct{}, len(s.PendingDeletes))
		for k := range s.PendingDeletes {
			ret.PendingDeletes[k] = struct{}{}
		}
	}
	return ret
}

func cloneMessages(msgs []api.Message) []api.Message {
	if msgs == nil {
		return nil
	}
	ret := make([]api.Message, len(msgs))
	for i, m := range msgs {
		ret[i] = m
		if m.Sources != nil {
			ret[i].Sources = append([]api.Source(nil), m.Sources...)
		}
		if m.Usage != nil {
			u := *m.Usage
			u.SimilarityScores = append([]float64(nil), m.Usage.SimilarityScores...)
			ret[i].Usage = &u
		}
	}
	return ret
}

func cloneResults(results []api.SearchResult) []api.SearchResult {
	if results == nil {
		return nil
	}
	return append([]api.SearchResult(nil), results...)
}

// ReconcileChat appends the assistant turn described by resp to prior and
// adopts the conversation id the backend returned. prior is not modified.
func ReconcileChat(prior State, resp api.ChatResponse, now time.Time) State {
	next := prior.Clone()
	msg := api.Message{
		Role:      api.RoleAssistant,
		Content:   resp.Response,
		Timestamp: api.NewTimestamp(now),
		Usage:     api.UsageFromMetadata(resp.Metadata),
	}
	if len(resp.Sources) > 0 {
		msg.Sources = append([]api.Source(nil), resp.Sources...)
	}
	next.Messages = append(next.Messages, msg)
	if resp.ConversationID != "" {
		next.ConversationID = resp.ConversationID
	}
	return next
}

// ReconcileSearch returns the result set that replaces the current one,
// in the order the backend ranked it.
func ReconcileSearch(resp api.SearchResponse) []api.SearchResult {
	ret := make([]api.SearchResult, len(resp.Results))
	copy(ret, resp.Results)
	return ret
}

// ReconcileEmbed returns the record kept as the last processed document.
func ReconcileEmbed(resp api.EmbedRecord) *api.EmbedRecord {
	rec := resp
	rec.Metadata.DataTypes = append([]string(nil), resp.Metadata.DataTypes...)
	return &rec
}

// ReconcileDelete drops every result whose document id is id. Deleting an id
// that is not present returns an equal copy of prior.
func ReconcileDelete(id string, prior []api.SearchResult) []api.SearchResult {
	ret := make([]api.SearchResult, 0, len(prior))
	for _, r := range prior {
		if r.DocumentID == id {
			continue
		}
		ret = append(ret, r)
	}
	return ret
}
