package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversation sessions",
	}

	newCmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a session",
		Long:  "Create a session. The title is optional; an untitled session is named after its first human turn.",
		Run:   runSessionNew,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Run:   runSessionList,
	}
	listCmd.Flags().IntP("limit", "l", 20, "Max results")

	sessionCmd.AddCommand(newCmd, listCmd)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionNew(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	sess, err := s.CreateSession(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		exitErr("create session", err)
	}

	b, _ := json.Marshal(sess)
	fmt.Println(string(b))
}

func runSessionList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	sessions, err := s.ListSessions(cmd.Context(), limit)
	if err != nil {
		exitErr("list sessions", err)
	}

	b, _ := json.MarshalIndent(sessions, "", "  ")
	fmt.Println(string(b))
}
