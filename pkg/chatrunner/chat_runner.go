package chatrunner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/ragchat/pkg/backend"
	"github.com/go-go-golems/ragchat/pkg/client"
	"github.com/go-go-golems/ragchat/pkg/events"
	"github.com/go-go-golems/ragchat/pkg/redisstream"
	"github.com/go-go-golems/ragchat/pkg/render"
	"github.com/go-go-golems/ragchat/pkg/requests"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	input "github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
)

// RunMode defines the execution mode for the chat session.
type RunMode string

const (
	// RunModeChat reads one message per line until EOF or /quit.
	RunModeChat RunMode = "chat"
	// RunModeInteractive sends the initial message, then offers to continue
	// in chat mode when stderr is a terminal.
	RunModeInteractive RunMode = "interactive"
	// RunModeBlocking sends the initial message and prints the answer.
	RunModeBlocking RunMode = "blocking"
)

// ChatSession holds the validated configuration and executes the chat logic.
// It's typically created and run by the ChatBuilder.
type ChatSession struct {
	ctx          context.Context
	backend      *backend.Backend
	publisher    *events.Publisher
	pubsub       *redisstream.PubSub
	ownsPubSub   bool
	renderer     *render.Renderer
	mode         RunMode
	message      string
	input        io.Reader
	outputWriter io.Writer
	statusWriter io.Writer
}

// Backend exposes the orchestrator driving this session.
func (cs *ChatSession) Backend() *backend.Backend { return cs.backend }

func (cs *ChatSession) SessionID() string { return cs.publisher.SessionID() }

// Run executes the chat session based on its configured mode.
func (cs *ChatSession) Run() error {
	if cs.ownsPubSub {
		defer func() {
			if err := cs.pubsub.Close(); err != nil {
				log.Warn().Err(err).Msg("could not close event transport")
			}
		}()
	}
	switch cs.mode {
	case RunModeChat:
		return cs.runChatInternal()
	case RunModeInteractive:
		return cs.runInteractiveInternal()
	case RunModeBlocking:
		return cs.runBlockingInternal()
	default:
		return errors.Errorf("unknown run mode: %v", cs.mode)
	}
}

// runBlockingInternal sends the initial message and prints the answer.
func (cs *ChatSession) runBlockingInternal() error {
	if strings.TrimSpace(cs.message) == "" {
		return errors.New("a message is required in blocking mode")
	}
	return cs.send(cs.message)
}

// runInteractiveInternal handles initial blocking run + optional chat transition.
func (cs *ChatSession) runInteractiveInternal() error {
	if strings.TrimSpace(cs.message) != "" {
		if err := cs.runBlockingInternal(); err != nil {
			return errors.Wrap(err, "error during initial blocking step")
		}
	}

	// Use Stderr for prompt asking, as Stdout might be redirected.
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.Debug().Msg("Stderr is not a TTY, skipping chat continuation prompt")
		return nil
	}
	continueInChat, err := askForChatContinuation(os.Stderr)
	if err != nil {
		return errors.Wrap(err, "failed to ask for chat continuation")
	}
	if !continueInChat {
		log.Debug().Msg("User chose not to continue in chat mode")
		return nil
	}
	return cs.runChatInternal()
}

// runChatInternal reads messages line by line while a router goroutine
// reports session transitions on the status writer.
func (cs *ChatSession) runChatInternal() error {
	router, err := events.NewRouter(cs.pubsub.Subscriber)
	if err != nil {
		return err
	}
	sessionID := cs.publisher.SessionID()
	router.AddHandler("status", func(ev events.Event) error {
		// other sessions may share a redis stream
		if ev.SessionID != sessionID || ev.DocumentID != "" {
			return nil
		}
		log.Debug().Str("flow", string(ev.Flow)).Str("event", string(ev.Event)).Str("phase", ev.Phase).Msg("session event")
		// chat failures are printed by the loop that sent the turn
		if ev.Event == session.EventFailed && ev.Flow != session.FlowChat {
			_, _ = fmt.Fprintln(cs.statusWriter, render.StatusLine(ev.Flow, session.Status{Phase: session.Failed, Reason: ev.Reason}))
		}
		return nil
	})

	eg, childCtx := errgroup.WithContext(cs.ctx)
	childCtx, cancel := context.WithCancel(childCtx)
	defer cancel()

	eg.Go(func() error {
		defer cancel()
		err := router.Run(childCtx)
		log.Debug().Err(err).Str("component", "chatrunner").Msg("event router stopped")
		return err
	})

	eg.Go(func() error {
		defer cancel()
		select {
		case <-router.Running():
		case <-childCtx.Done():
			return nil
		}
		log.Debug().Str("component", "chatrunner").Str("session_id", sessionID).Msg("chat loop started")
		return cs.chatLoop(childCtx)
	})

	err = eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (cs *ChatSession) chatLoop(ctx context.Context) error {
	_, _ = fmt.Fprintln(cs.statusWriter, render.Hint("Type a message, /status for flow status, /quit to leave."))
	scanner := bufio.NewScanner(cs.input)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, _ = fmt.Fprint(cs.statusWriter, render.Hint("> "))
		if !scanner.Scan() {
			return errors.Wrap(scanner.Err(), "failed to read input")
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/status":
			cs.printStatus()
			continue
		}
		if err := cs.send(line); err != nil {
			// a failed turn never ends the session
			cs.printError(err)
		}
	}
}

// send runs one chat turn to completion and prints the answer.
func (cs *ChatSession) send(text string) error {
	_, err := cs.backend.Do(cs.backend.SendMessage(text))
	if err != nil {
		return err
	}
	msgs := cs.backend.Store().Messages()
	answer, err := cs.renderer.Answer(msgs[len(msgs)-1])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cs.outputWriter, answer)
	return errors.Wrap(err, "failed to write output")
}

func (cs *ChatSession) printStatus() {
	st := cs.backend.Store().Snapshot()
	for _, f := range session.Flows {
		_, _ = fmt.Fprintln(cs.statusWriter, render.StatusLine(f, st.Status(f)))
	}
	id := st.ConversationID
	if id == "" {
		id = "(new)"
	}
	_, _ = fmt.Fprintln(cs.statusWriter, render.Hint(fmt.Sprintf("conversation %s, %d messages", id, len(st.Messages))))
}

func (cs *ChatSession) printError(err error) {
	var msg string
	var ve *requests.ValidationError
	switch {
	case errors.As(err, &ve):
		msg = ve.Message
	case session.IsBusy(err):
		msg = "a message is already being sent"
	default:
		if te, ok := client.AsTransportError(err); ok {
			_, _ = fmt.Fprintln(cs.statusWriter, render.StatusLine(session.FlowChat, session.Status{Phase: session.Failed, Reason: te.Reason()}))
			return
		}
		msg = err.Error()
	}
	_, _ = fmt.Fprintln(cs.statusWriter, render.Hint(msg))
}

// askForChatContinuation prompts the user on the given tty whether they want
// to continue in chat mode.
func askForChatContinuation(tty io.ReadWriter) (bool, error) {
	ui := &input.UI{
		Writer: tty,
		Reader: tty,
	}

	_, _ = fmt.Fprint(tty, "\n")
	query := "Do you want to continue in chat mode? [Y/n]"
	answer, err := ui.Ask(query, &input.Options{
		Default:  "y",
		Required: true,
		Loop:     true,
		ValidateFunc: func(answer string) error {
			switch answer {
			case "y", "Y", "n", "N", "":
				return nil
			default:
				return errors.Errorf("please enter 'y' or 'n'")
			}
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "failed to get user input")
	}

	_, _ = fmt.Fprint(tty, "\n")
	return answer == "y" || answer == "Y" || answer == "", nil
}
