package chatrunner

import (
	"context"
	"io"
	"os"

	"github.com/go-go-golems/ragchat/pkg/backend"
	"github.com/go-go-golems/ragchat/pkg/events"
	"github.com/go-go-golems/ragchat/pkg/redisstream"
	"github.com/go-go-golems/ragchat/pkg/render"
	"github.com/go-go-golems/ragchat/pkg/requests"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/pkg/errors"
)

// ChatBuilder provides a fluent API for configuring and running a chat session.
type ChatBuilder struct {
	err            error
	ctx            context.Context
	client         backend.Client
	chatOptions    []requests.ChatOption
	conversationID string
	message        string
	sessionID      string
	pubsub         *redisstream.PubSub
	renderer       *render.Renderer
	mode           RunMode
	input          io.Reader
	outputWriter   io.Writer
	statusWriter   io.Writer
}

// NewChatBuilder creates a new builder with default settings.
func NewChatBuilder() *ChatBuilder {
	return &ChatBuilder{
		ctx:          context.Background(),
		renderer:     render.New(""),
		mode:         RunModeChat,
		input:        os.Stdin,
		outputWriter: os.Stdout,
		statusWriter: os.Stderr,
	}
}

func (b *ChatBuilder) WithContext(ctx context.Context) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if ctx == nil {
		b.err = errors.New("context cannot be nil")
		return b
	}
	b.ctx = ctx
	return b
}

// WithClient sets the backend client. (Required)
func (b *ChatBuilder) WithClient(c backend.Client) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if c == nil {
		b.err = errors.New("client cannot be nil")
		return b
	}
	b.client = c
	return b
}

func (b *ChatBuilder) WithChatOptions(opts ...requests.ChatOption) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.chatOptions = append(b.chatOptions, opts...)
	return b
}

// WithConversationID continues an existing backend conversation.
func (b *ChatBuilder) WithConversationID(id string) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.conversationID = id
	return b
}

// WithMessage sets the first message, required in blocking mode.
func (b *ChatBuilder) WithMessage(text string) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.message = text
	return b
}

func (b *ChatBuilder) WithSessionID(id string) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.sessionID = id
	return b
}

// WithPubSub publishes session events on an existing transport. If not
// provided, an in-memory transport is created and closed by Run.
func (b *ChatBuilder) WithPubSub(ps *redisstream.PubSub) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.pubsub = ps
	return b
}

func (b *ChatBuilder) WithRenderer(r *render.Renderer) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if r == nil {
		b.err = errors.New("renderer cannot be nil")
		return b
	}
	b.renderer = r
	return b
}

// WithMode sets the execution mode (chat, interactive, blocking).
func (b *ChatBuilder) WithMode(mode RunMode) *ChatBuilder {
	if b.err != nil {
		return b
	}
	switch mode {
	case RunModeChat, RunModeInteractive, RunModeBlocking:
		b.mode = mode
	default:
		b.err = errors.Errorf("invalid run mode: %s", mode)
	}
	return b
}

// WithInput sets where chat mode reads messages from. Defaults to os.Stdin.
func (b *ChatBuilder) WithInput(r io.Reader) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if r == nil {
		b.err = errors.New("input cannot be nil")
		return b
	}
	b.input = r
	return b
}

// WithOutputWriter sets the writer answers are printed to. Defaults to os.Stdout.
func (b *ChatBuilder) WithOutputWriter(w io.Writer) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = errors.New("output writer cannot be nil")
		return b
	}
	b.outputWriter = w
	return b
}

// WithStatusWriter sets the writer for prompts and failures. Defaults to os.Stderr.
func (b *ChatBuilder) WithStatusWriter(w io.Writer) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = errors.New("status writer cannot be nil")
		return b
	}
	b.statusWriter = w
	return b
}

// Build validates the configuration and wires store, publisher and backend.
func (b *ChatBuilder) Build() (*ChatSession, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.client == nil {
		return nil, errors.New("client is required (use WithClient)")
	}
	if b.mode == RunModeBlocking && b.message == "" {
		return nil, errors.New("message is required in blocking mode (use WithMessage)")
	}
	if _, err := requests.BuildChatRequest("validate", "", b.chatOptions...); err != nil {
		return nil, errors.Wrap(err, "invalid chat options")
	}

	ps, owns := b.pubsub, false
	if ps == nil {
		var err error
		ps, err = redisstream.Build(redisstream.Settings{})
		if err != nil {
			return nil, err
		}
		owns = true
	}

	publisher := events.NewPublisher(ps.Publisher, b.sessionID)
	store := session.NewStore(
		session.WithConversationID(b.conversationID),
		session.WithObserver(publisher.Observe),
	)
	be := backend.New(b.client, store,
		backend.WithBaseContext(b.ctx),
		backend.WithChatOptions(b.chatOptions...),
	)

	return &ChatSession{
		ctx:          b.ctx,
		backend:      be,
		publisher:    publisher,
		pubsub:       ps,
		ownsPubSub:   owns,
		renderer:     b.renderer,
		mode:         b.mode,
		message:      b.message,
		input:        b.input,
		outputWriter: b.outputWriter,
		statusWriter: b.statusWriter,
	}, nil
}
