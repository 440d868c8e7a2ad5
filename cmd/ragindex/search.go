package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ragindex/internal/tui"
)

var flagSearchK int

var searchCmd = &cobra.Command{
	Use:   "search <collection>",
	Short: "Browse query results interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&flagSearchK, "top-k", "k", 10, "Number of results per query")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	collection := args[0]
	stats, err := a.engine.Stats(collection)
	if err != nil {
		return err
	}
	summary := fmt.Sprintf("%d chunks", stats.TotalChunks)
	if stats.Model != "" {
		summary += " · " + stats.Model
	}

	m := tui.New(a.engine, collection, flagSearchK, summary)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
	return err
}
