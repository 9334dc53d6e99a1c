package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seedling-ai/companion/internal/memory"
)

func init() {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Read and update long-term user profiles",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show a user's profile",
		Run:   runProfileGet,
	}
	getCmd.Flags().StringP("user", "u", "default", "User ID")

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Merge a partial update into a user's profile",
		Long: "Merge a partial update into a user's profile. The summary replaces the\n" +
			"stored one; trends and events merge key-wise, with updated keys\n" +
			"overwriting and all other keys preserved.",
		Run: runProfileUpdate,
	}
	updateCmd.Flags().StringP("user", "u", "default", "User ID")
	updateCmd.Flags().String("summary", "", "New profile summary (replaces the stored one)")
	updateCmd.Flags().String("trends", "", `Emotion trends as a JSON object, e.g. '{"anxious": 6}'`)
	updateCmd.Flags().String("events", "", `Important events as a JSON object, e.g. '{"2026-06-10": "exam week"}'`)

	profileCmd.AddCommand(getCmd, updateCmd)
	RootCmd.AddCommand(profileCmd)
}

func runProfileGet(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	p, err := s.GetProfile(cmd.Context(), userID)
	if err != nil {
		exitErr("get profile", err)
	}

	b, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(b))
}

func runProfileUpdate(cmd *cobra.Command, args []string) {
	userID, _ := cmd.Flags().GetString("user")
	summary, _ := cmd.Flags().GetString("summary")
	trends, _ := cmd.Flags().GetString("trends")
	events, _ := cmd.Flags().GetString("events")

	u, err := memory.ParseProfileUpdate(summary, trends, events)
	if err != nil {
		exitErr("profile update", err)
	}
	if u.Empty() {
		exitErr("profile update", fmt.Errorf("nothing to update: pass --summary, --trends, or --events"))
	}

	cfg := loadConfig()
	s := openStore(cfg)
	defer s.Close()

	p, err := s.UpdateProfile(cmd.Context(), userID, u)
	if err != nil {
		exitErr("profile update", err)
	}

	b, _ := json.MarshalIndent(p, "", "  ")
	fmt.Println(string(b))
}
