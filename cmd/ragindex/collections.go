package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var flagStatsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats <collection>",
	Short: "Show the number of chunks in a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		stats, err := a.engine.Stats(args[0])
		if err != nil {
			return err
		}
		if flagStatsJSON {
			return json.NewEncoder(os.Stdout).Encode(stats)
		}
		printInfo(args[0], fmt.Sprintf("%d chunks", stats.TotalChunks))
		if stats.Model != "" {
			printInfo(args[0], "model "+stats.Model)
		}
		if stats.Fallback {
			printWarn(args[0], "populated with fallback embeddings")
		}
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create <collection>",
	Short: "Create an empty persisted collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		exists, err := a.engine.CollectionExists(args[0])
		if err != nil {
			return err
		}
		if exists {
			printInfo(args[0], "already exists")
			return nil
		}
		if err := a.engine.CreateCollection(args[0]); err != nil {
			return err
		}
		printOK(args[0], "collection created")
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection>",
	Short: "Delete a collection and its document records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.engine.DeleteCollection(args[0]); err != nil {
			return err
		}
		n, err := a.docs.DeleteCollection(args[0])
		if err != nil {
			return err
		}
		printOK(args[0], fmt.Sprintf("deleted (%d document records)", n))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		ids, err := a.engine.Collections()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			printInfo("", "no collections")
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&flagStatsJSON, "json", false, "Print stats as JSON")
	rootCmd.AddCommand(statsCmd, createCmd, deleteCmd, listCmd)
}
