package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs <collection>",
	Short: "List documents ingested into a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, args []string) error {
	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.docs.List(args[0])
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		printInfo(args[0], "no documents")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILENAME\tSTATUS\tCHUNKS\tCREATED\tERROR")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			d.ID[:8], d.Filename, d.Status, d.ChunkCount, d.CreatedAt.Local().Format(time.DateTime), d.ErrorMessage)
	}
	return tw.Flush()
}
