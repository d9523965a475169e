// Package events publishes session transitions on a watermill topic and
// consumes them again, in-process or from other ragchat processes sharing a
// Redis stream.
package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/ragchat/pkg/logging"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Topic is the topic all sessions publish on.
const Topic = "ragchat.session"

// Event is the wire form of a session transition.
type Event struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	session.Transition
}

// Publisher turns transitions into watermill messages.
type Publisher struct {
	pub       message.Publisher
	topic     string
	sessionID string
}

func NewPublisher(pub message.Publisher, sessionID string) *Publisher {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Publisher{pub: pub, topic: Topic, sessionID: sessionID}
}

func (p *Publisher) SessionID() string { return p.sessionID }

// Publish sends tr on the session topic.
func (p *Publisher) Publish(tr session.Transition) error {
	ev := Event{
		ID:         watermill.NewUUID(),
		SessionID:  p.sessionID,
		Transition: tr,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "could not encode session event")
	}
	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set("session_id", p.sessionID)
	msg.Metadata.Set("flow", string(tr.Flow))
	return errors.Wrap(p.pub.Publish(p.topic, msg), "could not publish session event")
}

// Observe is a session.Observer. Publish failures are logged and otherwise
// ignored; they never affect the session.
func (p *Publisher) Observe(tr session.Transition) {
	if err := p.Publish(tr); err != nil {
		log.Warn().Err(err).Str("flow", string(tr.Flow)).Msg("dropping session event")
	}
}

// Decode parses the payload of a session event message.
func Decode(msg *message.Message) (Event, error) {
	var ev Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return Event{}, errors.Wrapf(err, "could not decode session event %s", msg.UUID)
	}
	return ev, nil
}

// Handler receives decoded events.
type Handler func(Event) error

// Router dispatches session events from a subscriber to handlers.
type Router struct {
	router *message.Router
	sub    message.Subscriber
}

func NewRouter(sub message.Subscriber) (*Router, error) {
	r, err := message.NewRouter(message.RouterConfig{}, logging.NewWatermill(log.Logger))
	if err != nil {
		return nil, errors.Wrap(err, "could not create event router")
	}
	return &Router{router: r, sub: sub}, nil
}

// AddHandler registers h under name. Undecodable messages are acked and
// skipped.
func (r *Router) AddHandler(name string, h Handler) {
	r.router.AddNoPublisherHandler(name, Topic, r.sub, func(msg *message.Message) error {
		ev, err := Decode(msg)
		if err != nil {
			log.Error().Err(err).Str("payload", string(msg.Payload)).Msg("failed to parse session event")
			return nil
		}
		return h(ev)
	})
}

// Run blocks until ctx is cancelled or the router fails.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

func (r *Router) Close() error {
	return r.router.Close()
}

// LogHandler writes every event to the global logger.
func LogHandler(ev Event) error {
	lvl := zerolog.InfoLevel
	if ev.Event == session.EventFailed {
		lvl = zerolog.WarnLevel
	}
	e := log.WithLevel(lvl).
		Str("session_id", ev.SessionID).
		Str("flow", string(ev.Flow)).
		Str("event", string(ev.Event)).
		Str("phase", ev.Phase).
		Int("messages", ev.MessageCount).
		Int("results", ev.ResultCount)
	if ev.ConversationID != "" {
		e = e.Str("conversation_id", ev.ConversationID)
	}
	if ev.DocumentID != "" {
		e = e.Str("document_id", ev.DocumentID)
	}
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	e.Msg("session event")
	return nil
}
