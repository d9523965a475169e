package backend

import (
	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/pkg/errors"
)

// ErrDeleteNotConfirmed is the failure recorded when the backend answers a
// delete with success=false.
var ErrDeleteNotConfirmed = errors.New("backend did not confirm the deletion")

type ChatSucceededMsg struct {
	Response api.ChatResponse
}

type ChatFailedMsg struct {
	Err error
}

type SearchSucceededMsg struct {
	Request  api.SearchRequest
	Response api.SearchResponse
}

type SearchFailedMsg struct {
	Query string
	Err   error
}

type EmbedSucceededMsg struct {
	Record api.EmbedRecord
	// Example is set when the record comes from the backend's built-in example.
	Example bool
}

type EmbedFailedMsg struct {
	Err error
}

type DocumentDeletedMsg struct {
	DocumentID string
}

type DeleteFailedMsg struct {
	DocumentID string
	Err        error
}

type ConversationLoadedMsg struct {
	Conversation api.Conversation
}

type ConversationFailedMsg struct {
	ConversationID string
	Err            error
}

// Failure returns the error carried by a failed completion message, nil for
// anything else.
func Failure(msg interface{}) error {
	switch m := msg.(type) {
	case ChatFailedMsg:
		return m.Err
	case SearchFailedMsg:
		return m.Err
	case EmbedFailedMsg:
		return m.Err
	case DeleteFailedMsg:
		return m.Err
	case ConversationFailedMsg:
		return m.Err
	}
	return nil
}
