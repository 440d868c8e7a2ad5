package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ragindex/internal/service"
)

var (
	flagQueryK       int
	flagQueryJSON    bool
	flagQueryContext bool
	flagQueryMsgs    bool
	flagQuerySystem  string
)

var queryCmd = &cobra.Command{
	Use:   "query <collection> <text>...",
	Short: "Return the chunks nearest to a query",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&flagQueryK, "top-k", "k", 0, "Number of results (default from config)")
	queryCmd.Flags().BoolVar(&flagQueryJSON, "json", false, "Print results and sources as JSON")
	queryCmd.Flags().BoolVar(&flagQueryContext, "context", false, "Print the formatted prompt context instead of a listing")
	queryCmd.Flags().BoolVar(&flagQueryMsgs, "messages", false, "Print the chat messages for an answer model as JSON")
	queryCmd.Flags().StringVar(&flagQuerySystem, "system", "", "System prompt used with --messages")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	collection, query := args[0], strings.Join(args[1:], " ")
	res, err := a.engine.Retrieve(cmd.Context(), collection, query, flagQueryK)
	if err != nil {
		return err
	}

	switch {
	case flagQueryMsgs:
		return writeJSON(os.Stdout, answerMessages(query, res, flagQuerySystem))
	case flagQueryJSON:
		return writeJSON(os.Stdout, struct {
			service.Retrieval
			Sources []service.Source `json:"sources"`
		}{res, service.Sources(res.Results)})
	case flagQueryContext:
		fmt.Println(service.FormatContext(res.Results))
		return nil
	}

	if res.Degraded {
		printWarn(collection, "ranked with fallback embeddings; similarity is lexical only")
	}
	if len(res.Results) == 0 {
		printInfo(collection, "no matching chunks")
		return nil
	}
	for i, r := range res.Results {
		fmt.Printf("\n%d. %s #%d  (distance %.4f)\n", i+1, r.Metadata.Source, r.Metadata.ChunkIndex, r.Score)
		fmt.Println(indent(r.Text, "   "))
	}
	return nil
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// answerMessages builds the prompt an answer model would receive for query.
func answerMessages(query string, res service.Retrieval, systemPrompt string) []service.Message {
	return service.BuildMessages(query, service.FormatContext(res.Results), systemPrompt, nil)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
