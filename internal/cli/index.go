package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seedling-ai/companion/internal/knowledge"
)

func init() {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Build and inspect the knowledge index",
	}

	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Build the index from the plain-text corpus",
		Long: "Chunk and embed every .txt document in the corpus directory, then\n" +
			"atomically replace the persisted index. Runs offline; an unreachable\n" +
			"embedding service fails the build rather than producing a degraded index.",
		Run: runIndexBuild,
	}
	buildCmd.Flags().String("source", "", "Corpus directory (overrides config)")

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Query the index directly",
		Run:   runIndexSearch,
	}
	searchCmd.Flags().IntP("top", "k", 0, "Number of results (default from config)")

	indexCmd.AddCommand(buildCmd, searchCmd)
	RootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, args []string) {
	source, _ := cmd.Flags().GetString("source")

	cfg := loadConfig()
	if source == "" {
		source = cfg.Knowledge.SourceDir
	}

	in := knowledge.NewIndexer(
		newEmbedder(cfg.Embedding, true),
		chunkingOptions(cfg.Knowledge),
		cfg.Knowledge.IndexDir,
		knowledge.NewHandle(),
		nil,
	)

	res, err := in.Build(cmd.Context(), source)
	if err != nil {
		exitErr("index build", err)
	}

	b, _ := json.Marshal(res)
	fmt.Println(string(b))
}

func runIndexSearch(cmd *cobra.Command, args []string) {
	k, _ := cmd.Flags().GetInt("top")

	if len(args) == 0 {
		exitErr("index search", fmt.Errorf("query is required"))
	}
	query := strings.Join(args, " ")

	cfg := loadConfig()
	if k <= 0 {
		k = cfg.Knowledge.TopK
	}

	handle := knowledge.NewHandle()
	if err := handle.LoadFrom(cfg.Knowledge.IndexDir); err != nil {
		exitErr("load index", err)
	}

	r := knowledge.NewRetriever(handle, newEmbedder(cfg.Embedding, false), k, nil)
	hits, err := r.Search(cmd.Context(), query)
	if err != nil {
		exitErr("search", err)
	}

	b, _ := json.MarshalIndent(hits, "", "  ")
	fmt.Println(string(b))
}
