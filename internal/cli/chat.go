package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedling-ai/companion/internal/agent"
	"github.com/seedling-ai/companion/internal/policy"
)

func init() {
	chatCmd := &cobra.Command{
		Use:   "chat [text]",
		Short: "Process one human turn",
		Long: "Process one human turn through the full pipeline: persist it, classify it,\n" +
			"route it, and print the assembled context bundle as JSON. Text can be a\n" +
			"positional arg or piped via stdin.",
		Run: runChat,
	}
	chatCmd.Flags().StringP("session", "s", "", "Session ID (required)")
	chatCmd.Flags().StringP("user", "u", "default", "User ID for the long-term profile")
	chatCmd.MarkFlagRequired("session")

	replyCmd := &cobra.Command{
		Use:   "reply [text]",
		Short: "Record the agent's reply in a session",
		Run:   runReply,
	}
	replyCmd.Flags().StringP("session", "s", "", "Session ID (required)")
	replyCmd.MarkFlagRequired("session")

	RootCmd.AddCommand(chatCmd, replyCmd)
}

// readText gets text from positional args first, then stdin.
func readText(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func runChat(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	userID, _ := cmd.Flags().GetString("user")

	text := strings.TrimSpace(readText(args))
	if text == "" {
		exitErr("chat", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	a := agent.New(agent.Options{
		Store:           s,
		Classifier:      newClassifier(cfg.Classify),
		Policy:          policy.New(cfg.Policy.CrisisIntensity),
		Retriever:       newRetriever(cfg),
		Window:          cfg.Memory.Window,
		ClassifyTimeout: cfg.Classify.Timeout,
	})

	bundle, err := a.ProcessTurn(cmd.Context(), sessionID, userID, text)
	if err != nil {
		exitErr("chat", err)
	}

	b, _ := json.MarshalIndent(bundle, "", "  ")
	fmt.Println(string(b))
}

func runReply(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	text := strings.TrimSpace(readText(args))
	if text == "" {
		exitErr("reply", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	a := agent.New(agent.Options{Store: s, Classifier: newClassifier(cfg.Classify)})
	turn, err := a.RecordReply(cmd.Context(), sessionID, text)
	if err != nil {
		exitErr("reply", err)
	}

	b, _ := json.Marshal(turn)
	fmt.Println(string(b))
}
