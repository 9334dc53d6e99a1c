package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedling-ai/companion/internal/memory"
)

func init() {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent turns of a session, oldest first",
		Run:   runHistory,
	}
	historyCmd.Flags().StringP("session", "s", "", "Session ID (required)")
	historyCmd.Flags().IntP("limit", "l", 10, "Max turns")
	historyCmd.MarkFlagRequired("session")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export a full session transcript as JSON",
		Run:   runExport,
	}
	exportCmd.Flags().StringP("session", "s", "", "Session ID (required)")
	exportCmd.MarkFlagRequired("session")

	RootCmd.AddCommand(historyCmd, exportCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")
	limit, _ := cmd.Flags().GetInt("limit")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	turns, err := s.Recent(cmd.Context(), memory.RecentParams{SessionID: sessionID, Limit: limit})
	if err != nil {
		exitErr("history", err)
	}

	b, _ := json.MarshalIndent(turns, "", "  ")
	fmt.Println(string(b))
}

func runExport(cmd *cobra.Command, args []string) {
	sessionID, _ := cmd.Flags().GetString("session")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	tr, err := s.ExportSession(cmd.Context(), sessionID)
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(tr, "", "  ")
	fmt.Println(string(b))
}
