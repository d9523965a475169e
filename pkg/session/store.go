// Package session holds the state of one interactive RAG session: the
// conversation history, the current search results and the status of the
// chat, search and embed flows.
//
// A Store only changes in reaction to Begin*, *Succeeded and *Failed events.
// A Begin* while the same flow is pending is rejected with a BusyError, so
// completions of a flow are always applied in the order they were issued.
package session

import (
	"sync"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Event names a state change reported to observers.
type Event string

const (
	EventBegin     Event = "begin"
	EventSucceeded Event = "succeeded"
	EventFailed    Event = "failed"
	EventDeleted   Event = "deleted"
	EventResumed   Event = "resumed"
)

// Transition describes one applied event.
type Transition struct {
	Flow           Flow      `json:"flow"`
	Event          Event     `json:"event"`
	Phase          string    `json:"phase"`
	Reason         string    `json:"reason,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	MessageCount   int       `json:"messageCount"`
	ResultCount    int       `json:"resultCount"`
	DocumentID     string    `json:"documentId,omitempty"`
	At             time.Time `json:"at"`
}

// Observer is called after every applied transition, outside the store lock.
type Observer func(Transition)

// ErrSessionNotEmpty is returned when resuming a conversation into a session
// that already has messages.
var ErrSessionNotEmpty = errors.New("session already has messages")

const (
	reasonChat   = "Failed to send message"
	reasonSearch = "Failed to search documents"
	reasonEmbed  = "Failed to process document"
	reasonDelete = "Failed to delete document"
	reasonResume = "Failed to load conversation"
)

type Store struct {
	mu    sync.RWMutex
	state State

	pendingSearch *api.SearchRequest
	// deletedDuringSearch holds ids confirmed deleted while a search was in
	// flight; they are dropped from that search's results when it lands.
	deletedDuringSearch map[string]struct{}

	now       func() time.Time
	observers []Observer
}

type StoreOption func(*Store)

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func WithObserver(o Observer) StoreOption {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// WithConversationID starts the session on an existing conversation. The
// next chat turn echoes id to the backend.
func WithConversationID(id string) StoreOption {
	return func(s *Store) { s.state.ConversationID = id }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ConversationID
}

func (s *Store) Messages() []api.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.state.Messages)
}

func (s *Store) Status(f Flow) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Status(f)
}

func (s *Store) SearchResults() []api.SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneResults(s.state.SearchResults)
}

// BeginChat appends the user turn and marks the chat flow pending. It returns
// the conversation id the request must carry, empty for a new conversation.
func (s *Store) BeginChat(text string) (string, error) {
	var conversationID string
	err := s.apply(FlowChat, EventBegin, "", func(st *State) error {
		if st.Chat.IsPending() {
			return &BusyError{Flow: FlowChat}
		}
		st.Messages = append(st.Messages, api.Message{
			Role:      api.RoleUser,
			Content:   text,
			Timestamp: api.NewTimestamp(s.now()),
		})
		st.Chat = Status{Phase: Pending}
		conversationID = st.ConversationID
		return nil
	})
	return conversationID, err
}

func (s *Store) ChatSucceeded(resp api.ChatResponse) error {
	return s.apply(FlowChat, EventSucceeded, "", func(st *State) error {
		if !st.Chat.IsPending() {
			return ErrNotPending
		}
		*st = ReconcileChat(*st, resp, s.now())
		st.Chat = Status{Phase: Succeeded}
		return nil
	})
}

func (s *Store) ChatFailed(err error) error {
	return s.fail(FlowChat, err, reasonChat)
}

// BeginResume marks the chat flow pending while a stored conversation is
// loaded. Only an empty session can be resumed into.
func (s *Store) BeginResume() error {
	return s.apply(FlowChat, EventBegin, "", func(st *State) error {
		if st.Chat.IsPending() {
			return &BusyError{Flow: FlowChat}
		}
		if len(st.Messages) > 0 {
			return ErrSessionNotEmpty
		}
		st.Chat = Status{Phase: Pending}
		return nil
	})
}

// ResumeSucceeded adopts the transcript and id of conv.
func (s *Store) ResumeSucceeded(conv api.Conversation) error {
	return s.apply(FlowChat, EventResumed, "", func(st *State) error {
		if !st.Chat.IsPending() {
			return ErrNotPending
		}
		st.Messages = cloneMessages(conv.Messages)
		st.ConversationID = conv.ID
		st.Chat = Status{Phase: Succeeded}
		return nil
	})
}

func (s *Store) ResumeFailed(err error) error {
	return s.fail(FlowChat, err, reasonResume)
}

func (s *Store) BeginSearch(req api.SearchRequest) error {
	return s.apply(FlowSearch, EventBegin, "", func(st *State) error {
		if st.Search.IsPending() {
			return &BusyError{Flow: FlowSearch}
		}
		r := req
		s.pendingSearch = &r
		s.deletedDuringSearch = nil
		st.Search = Status{Phase: Pending}
		return nil
	})
}

// SearchSucceeded replaces the result set wholesale. Documents whose deletion
// was confirmed while the search was in flight are left out.
func (s *Store) SearchSucceeded(resp api.SearchResponse) error {
	return s.apply(FlowSearch, EventSucceeded, "", func(st *State) error {
		if !st.Search.IsPending() {
			return ErrNotPending
		}
		st.SearchResults = ReconcileSearch(resp)
		for id := range s.deletedDuringSearch {
			st.SearchResults = ReconcileDelete(id, st.SearchResults)
		}
		s.deletedDuringSearch = nil
		st.LastSearch = s.pendingSearch
		s.pendingSearch = nil
		st.Search = Status{Phase: Succeeded}
		return nil
	})
}

// SearchFailed keeps the previous result set.
func (s *Store) SearchFailed(err error) error {
	return s.fail(FlowSearch, err, reasonSearch)
}

func (s *Store) BeginEmbed(req api.EmbedRequest) error {
	return s.apply(FlowEmbed, EventBegin, "", func(st *State) error {
		if st.Embed.IsPending() {
			return &BusyError{Flow: FlowEmbed}
		}
		st.Embed = Status{Phase: Pending}
		return nil
	})
}

func (s *Store) EmbedSucceeded(rec api.EmbedRecord) error {
	return s.apply(FlowEmbed, EventSucceeded, rec.DocumentID, func(st *State) error {
		if !st.Embed.IsPending() {
			return ErrNotPending
		}
		st.LastEmbed = ReconcileEmbed(rec)
		st.Embed = Status{Phase: Succeeded}
		return nil
	})
}

func (s *Store) EmbedFailed(err error) error {
	return s.fail(FlowEmbed, err, reasonEmbed)
}

// BeginDelete records that a delete of id is in flight. Deletes of different
// documents may overlap; a second delete of the same id is rejected.
func (s *Store) BeginDelete(id string) error {
	return s.apply(FlowSearch, EventBegin, id, func(st *State) error {
		if _, ok := st.PendingDeletes[id]; ok {
			return &BusyError{Flow: FlowSearch, DocumentID: id}
		}
		if st.PendingDeletes == nil {
			st.PendingDeletes = map[string]struct{}{}
		}
		st.PendingDeletes[id] = struct{}{}
		return nil
	})
}

// DeleteDocument removes every result with id from the current result set,
// and from the results of a search still in flight. It is applied only once
// the backend confirmed the deletion and is idempotent. Sources already
// attached to past chat turns are left alone.
func (s *Store) DeleteDocument(id string) error {
	return s.apply(FlowSearch, EventDeleted, id, func(st *State) error {
		delete(st.PendingDeletes, id)
		if st.Search.IsPending() {
			if s.deletedDuringSearch == nil {
				s.deletedDuringSearch = map[string]struct{}{}
			}
			s.deletedDuringSearch[id] = struct{}{}
		}
		st.SearchResults = ReconcileDelete(id, st.SearchResults)
		return nil
	})
}

// DeleteFailed leaves the result set untouched and reports the failure on the
// search flow, unless a search is in flight and owns that status.
func (s *Store) DeleteFailed(id string, err error) error {
	return s.apply(FlowSearch, EventFailed, id, func(st *State) error {
		delete(st.PendingDeletes, id)
		if !st.Search.IsPending() {
			st.Search = Status{Phase: Failed, Reason: failureReason(err, reasonDelete), Err: err}
		}
		return nil
	})
}

func (s *Store) fail(f Flow, err error, fallback string) error {
	return s.apply(f, EventFailed, "", func(st *State) error {
		if !st.Status(f).IsPending() {
			return ErrNotPending
		}
		if f == FlowSearch {
			s.pendingSearch = nil
			s.deletedDuringSearch = nil
		}
		st.setStatus(f, Status{Phase: Failed, Reason: failureReason(err, fallback), Err: err})
		return nil
	})
}

// apply runs fn under the write lock. fn mutates st in place and leaves the
// state untouched when it returns an error.
func (s *Store) apply(f Flow, ev Event, documentID string, fn func(st *State) error) error {
	s.mu.Lock()
	if err := fn(&s.state); err != nil {
		s.mu.Unlock()
		log.Debug().Str("flow", string(f)).Str("event", string(ev)).Err(err).Msg("session event rejected")
		return err
	}
	st := s.state.Status(f)
	tr := Transition{
		Flow:           f,
		Event:          ev,
		Phase:          st.Phase.String(),
		Reason:         st.Reason,
		ConversationID: s.state.ConversationID,
		MessageCount:   len(s.state.Messages),
		ResultCount:    len(s.state.SearchResults),
		DocumentID:     documentID,
		At:             s.now(),
	}
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	log.Debug().
		Str("flow", string(f)).
		Str("event", string(ev)).
		Str("phase", tr.Phase).
		Str("conversation_id", tr.ConversationID).
		Int("messages", tr.MessageCount).
		Msg("session transition")

	for _, o := range observers {
		o(tr)
	}
	return nil
}
