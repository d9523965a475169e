package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/logging"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublisher_StoreTransitionsReachRouter(t *testing.T) {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, logging.NewWatermill(zerolog.Nop()))
	t.Cleanup(func() { _ = ch.Close() })

	router, err := NewRouter(ch)
	require.NoError(t, err)
	received := make(chan Event, 16)
	router.AddHandler("collect", func(ev Event) error {
		received <- ev
		return nil
	})
	router.AddHandler("log", LogHandler)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = router.Run(ctx) }()
	select {
	case <-router.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	pub := NewPublisher(ch, "session-1")
	store := session.NewStore(session.WithObserver(pub.Observe))
	_, err = store.BeginChat("hi")
	require.NoError(t, err)
	require.NoError(t, store.ChatSucceeded(api.ChatResponse{Response: "hello", ConversationID: "c1"}))

	var got []Event
	for len(got) < 2 {
		select {
		case ev := <-received:
			got = append(got, ev)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d events, want 2", len(got))
		}
	}
	require.Equal(t, session.EventBegin, got[0].Event)
	require.Equal(t, "pending", got[0].Phase)
	require.Equal(t, session.EventSucceeded, got[1].Event)
	require.Equal(t, "c1", got[1].ConversationID)
	require.Equal(t, 2, got[1].MessageCount)
	require.Equal(t, "session-1", got[1].SessionID)
	require.NotEmpty(t, got[1].ID)
}

func TestDecode(t *testing.T) {
	_, err := Decode(message.NewMessage(watermill.NewUUID(), []byte("not json")))
	require.Error(t, err)

	ev, err := Decode(message.NewMessage(watermill.NewUUID(), []byte(`{"id":"e1","sessionId":"s","flow":"search","event":"failed","phase":"failed","reason":"boom"}`)))
	require.NoError(t, err)
	require.Equal(t, session.FlowSearch, ev.Flow)
	require.Equal(t, "boom", ev.Reason)
}

func TestNewPublisher_GeneratesSessionID(t *testing.T) {
	p := NewPublisher(nil, "")
	require.Len(t, p.SessionID(), 36)
}
