package cmds

import (
	"github.com/go-go-golems/ragchat/pkg/chatrunner"
	"github.com/go-go-golems/ragchat/pkg/requests"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewChatCommand(env *Env) *cobra.Command {
	var (
		message        string
		conversationID string
		resume         bool
		interactive    bool
		plain          bool
		topK           int
		threshold      float64
		temperature    float64
		maxTokens      int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions answered from the indexed documents",
		Long: "Without --message, reads one message per line from stdin until EOF or /quit.\n" +
			"With --message, sends it and prints the answer; --interactive then offers to keep chatting.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}

			opts := env.Settings.Chat.Options()
			if cmd.Flags().Changed("top-k") {
				opts = append(opts, requests.WithTopK(topK))
			}
			if cmd.Flags().Changed("similarity-threshold") {
				opts = append(opts, requests.WithSimilarityThreshold(threshold))
			}
			if cmd.Flags().Changed("temperature") {
				opts = append(opts, requests.WithTemperature(temperature))
			}
			if cmd.Flags().Changed("max-tokens") {
				opts = append(opts, requests.WithMaxTokens(maxTokens))
			}

			mode := chatrunner.RunModeChat
			switch {
			case message != "" && interactive:
				mode = chatrunner.RunModeInteractive
			case message != "":
				mode = chatrunner.RunModeBlocking
			}

			sessionID := uuid.NewString()
			ps, err := env.SessionPubSub(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			defer func() { _ = ps.Close() }()

			b := chatrunner.NewChatBuilder().
				WithContext(cmd.Context()).
				WithClient(c).
				WithChatOptions(opts...).
				WithSessionID(sessionID).
				WithPubSub(ps).
				WithRenderer(env.Renderer(plain)).
				WithMode(mode).
				WithMessage(message).
				WithInput(cmd.InOrStdin()).
				WithOutputWriter(cmd.OutOrStdout()).
				WithStatusWriter(cmd.ErrOrStderr())
			if !resume {
				b = b.WithConversationID(conversationID)
			}
			cs, err := b.Build()
			if err != nil {
				return err
			}

			if resume {
				if conversationID == "" {
					return errors.New("--resume needs --conversation")
				}
				be := cs.Backend()
				if _, err := be.Do(be.ResumeConversation(conversationID)); err != nil {
					return errors.Wrap(err, "could not load conversation")
				}
			}
			return cs.Run()
		},
	}

	f := cmd.Flags()
	f.StringVarP(&message, "message", "m", "", "Send this message and print the answer")
	f.StringVar(&conversationID, "conversation", "", "Continue an existing conversation")
	f.BoolVar(&resume, "resume", false, "Load the transcript of --conversation before chatting")
	f.BoolVarP(&interactive, "interactive", "i", false, "Keep chatting after --message")
	f.BoolVar(&plain, "plain", false, "Print plain markdown")
	f.IntVar(&topK, "top-k", requests.DefaultTopK, "Number of documents retrieved per question")
	f.Float64Var(&threshold, "similarity-threshold", requests.DefaultSimilarityThreshold, "Minimum similarity of retrieved documents")
	f.Float64Var(&temperature, "temperature", 0, "Sampling temperature")
	f.IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens in the answer")
	return cmd
}
