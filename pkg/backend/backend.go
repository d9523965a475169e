// Package backend orchestrates user intents against the RAG backend. Every
// intent is validated and gated synchronously, then returns a tea.Cmd that
// performs the backend call and yields a completion message. Feeding that
// message to Apply reconciles it into the session store.
package backend

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/requests"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Client is the subset of *client.Client the orchestrator needs.
type Client interface {
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	Search(ctx context.Context, req api.SearchRequest) (*api.SearchResponse, error)
	Embed(ctx context.Context, req api.EmbedRequest) (*api.EmbedRecord, error)
	ProcessExample(ctx context.Context) (*api.EmbedRecord, error)
	DeleteDocument(ctx context.Context, id string) (*api.DeleteResponse, error)
	GetConversation(ctx context.Context, id string) (*api.Conversation, error)
}

// Backend binds a Client to a session Store.
type Backend struct {
	client   Client
	store    *session.Store
	ctx      context.Context
	chatOpts []requests.ChatOption
}

type Option func(*Backend)

// WithBaseContext sets the context every backend call derives from. Calls
// are not cancelled by the caller; the client timeout bounds them.
func WithBaseContext(ctx context.Context) Option {
	return func(b *Backend) { b.ctx = ctx }
}

// WithChatOptions sets the retrieval parameters applied to every chat turn.
func WithChatOptions(opts ...requests.ChatOption) Option {
	return func(b *Backend) { b.chatOpts = append(b.chatOpts, opts...) }
}

func New(c Client, store *session.Store, options ...Option) *Backend {
	b := &Backend{
		client: c,
		store:  store,
		ctx:    context.Background(),
	}
	for _, o := range options {
		o(b)
	}
	return b
}

func (b *Backend) Store() *session.Store { return b.store }

// SendMessage starts a chat turn. Empty text yields a ValidationError and a
// turn started while another is pending yields a BusyError; neither reaches
// the backend.
func (b *Backend) SendMessage(text string) (tea.Cmd, error) {
	// validate before touching the store so a rejected message leaves no trace
	if _, err := requests.BuildChatRequest(text, "", b.chatOpts...); err != nil {
		return nil, err
	}
	conversationID, err := b.store.BeginChat(text)
	if err != nil {
		return nil, err
	}
	req, err := requests.BuildChatRequest(text, conversationID, b.chatOpts...)
	if err != nil {
		// unreachable: the same input validated above
		_ = b.store.ChatFailed(err)
		return nil, err
	}

	return func() tea.Msg {
		resp, err := b.client.Chat(b.ctx, req)
		if err != nil {
			return ChatFailedMsg{Err: err}
		}
		return ChatSucceededMsg{Response: *resp}
	}, nil
}

// Search starts a semantic search that replaces the current result set on
// success.
func (b *Backend) Search(query string, limit int, includeScore bool) (tea.Cmd, error) {
	req, err := requests.BuildSearchRequest(query, limit, includeScore)
	if err != nil {
		return nil, err
	}
	if err := b.store.BeginSearch(req); err != nil {
		return nil, err
	}

	return func() tea.Msg {
		resp, err := b.client.Search(b.ctx, req)
		if err != nil {
			return SearchFailedMsg{Query: req.Query, Err: err}
		}
		return SearchSucceededMsg{Request: req, Response: *resp}
	}, nil
}

// SubmitDocument parses raw as JSON and sends it for embedding.
func (b *Backend) SubmitDocument(raw string) (tea.Cmd, error) {
	req, err := requests.BuildEmbedRequest(raw)
	if err != nil {
		return nil, err
	}
	if err := b.store.BeginEmbed(req); err != nil {
		return nil, err
	}

	return func() tea.Msg {
		rec, err := b.client.Embed(b.ctx, req)
		if err != nil {
			return EmbedFailedMsg{Err: err}
		}
		return EmbedSucceededMsg{Record: *rec}
	}, nil
}

// ProcessExample asks the backend to embed its built-in example document.
// It shares the embed flow and its gate.
func (b *Backend) ProcessExample() (tea.Cmd, error) {
	if err := b.store.BeginEmbed(api.EmbedRequest{}); err != nil {
		return nil, err
	}

	return func() tea.Msg {
		rec, err := b.client.ProcessExample(b.ctx)
		if err != nil {
			return EmbedFailedMsg{Err: err}
		}
		return EmbedSucceededMsg{Record: *rec, Example: true}
	}, nil
}

// DeleteDocument deletes a document on the backend. The local result set is
// only filtered once the backend confirmed the deletion.
func (b *Backend) DeleteDocument(documentID string) (tea.Cmd, error) {
	id, err := requests.BuildDeleteRequest(documentID)
	if err != nil {
		return nil, err
	}
	if err := b.store.BeginDelete(id); err != nil {
		return nil, err
	}

	return func() tea.Msg {
		resp, err := b.client.DeleteDocument(b.ctx, id)
		if err != nil {
			return DeleteFailedMsg{DocumentID: id, Err: err}
		}
		if !resp.Success {
			return DeleteFailedMsg{DocumentID: id, Err: ErrDeleteNotConfirmed}
		}
		return DocumentDeletedMsg{DocumentID: id}
	}, nil
}

// ResumeConversation loads a stored conversation into an empty session so
// that the next turn continues it.
func (b *Backend) ResumeConversation(conversationID string) (tea.Cmd, error) {
	id := strings.TrimSpace(conversationID)
	if id == "" {
		return nil, &requests.ValidationError{Field: "conversationId", Message: "conversation id cannot be empty"}
	}
	if err := b.store.BeginResume(); err != nil {
		return nil, err
	}

	return func() tea.Msg {
		conv, err := b.client.GetConversation(b.ctx, id)
		if err != nil {
			return ConversationFailedMsg{ConversationID: id, Err: err}
		}
		return ConversationLoadedMsg{Conversation: *conv}
	}, nil
}

// Apply reconciles a completion message into the store. Messages that are not
// completions are ignored.
func (b *Backend) Apply(msg tea.Msg) error {
	var err error
	switch m := msg.(type) {
	case ChatSucceededMsg:
		err = b.store.ChatSucceeded(m.Response)
	case ChatFailedMsg:
		log.Warn().Err(m.Err).Msg("chat failed")
		err = b.store.ChatFailed(m.Err)
	case SearchSucceededMsg:
		err = b.store.SearchSucceeded(m.Response)
	case SearchFailedMsg:
		log.Warn().Err(m.Err).Str("query", m.Query).Msg("search failed")
		err = b.store.SearchFailed(m.Err)
	case EmbedSucceededMsg:
		err = b.store.EmbedSucceeded(m.Record)
	case EmbedFailedMsg:
		log.Warn().Err(m.Err).Msg("embed failed")
		err = b.store.EmbedFailed(m.Err)
	case DocumentDeletedMsg:
		err = b.store.DeleteDocument(m.DocumentID)
	case DeleteFailedMsg:
		log.Warn().Err(m.Err).Str("document_id", m.DocumentID).Msg("delete failed")
		err = b.store.DeleteFailed(m.DocumentID, m.Err)
	case ConversationLoadedMsg:
		err = b.store.ResumeSucceeded(m.Conversation)
	case ConversationFailedMsg:
		log.Warn().Err(m.Err).Str("conversation_id", m.ConversationID).Msg("loading conversation failed")
		err = b.store.ResumeFailed(m.Err)
	default:
		return nil
	}
	return errors.Wrapf(err, "applying %T", msg)
}

// Do runs cmd to completion and applies its result. It is the blocking path
// used by the CLI; the returned message is the completion that was applied.
func (b *Backend) Do(cmd tea.Cmd, err error) (tea.Msg, error) {
	if err != nil {
		return nil, err
	}
	msg := cmd()
	if err := b.Apply(msg); err != nil {
		return msg, err
	}
	return msg, Failure(msg)
}
