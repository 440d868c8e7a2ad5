package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"ragindex/internal/ingest"
)

var (
	flagIngestExclude    []string
	flagIngestNoProgress bool
	flagIngestNoDocs     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <collection> <path|glob>...",
	Short: "Chunk, embed and append documents to a collection",
	Long: `Reads .txt and .md files, splits them into chunks, embeds them and appends
them to the collection. Directories are walked recursively and patterns may
use ** globs. Files whose content was already ingested are skipped.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&flagIngestExclude, "exclude", nil, "Glob patterns to skip (matched against path and base name)")
	ingestCmd.Flags().BoolVar(&flagIngestNoProgress, "no-progress", false, "Disable the progress bar")
	ingestCmd.Flags().BoolVar(&flagIngestNoDocs, "no-docstore", false, "Do not record or deduplicate documents")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	collection := args[0]
	files, err := ingest.Expand(args[1:], flagIngestExclude)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("no .txt or .md documents found")
	}

	a, err := openApp(!flagIngestNoDocs)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	runner := ingest.NewRunner(a.engine, a.docs, a.logger)
	bar := newProgress(!flagIngestNoProgress && progressEnabled(), len(files), "ingesting")
	var outcomes []ingest.Outcome
	for _, f := range files {
		out, err := runner.File(ctx, collection, f)
		bar.Increment()
		if err != nil {
			bar.Finish()
			return err
		}
		outcomes = append(outcomes, out)
		if errors.Is(ctx.Err(), context.Canceled) {
			break
		}
	}
	bar.Finish()

	var chunks, failed, skipped int
	for _, out := range outcomes {
		switch {
		case out.Err != nil:
			failed++
			printErr(out.Path, out.Err.Error())
		case out.Skipped:
			skipped++
			printSkip(out.Path, out.Reason)
		default:
			chunks += out.Chunks
			printOK(out.Path, fmt.Sprintf("%d chunks", out.Chunks))
		}
	}
	printInfo(collection, fmt.Sprintf("%d files, %d chunks added, %d skipped, %d failed", len(outcomes), chunks, skipped, failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(outcomes))
	}
	return nil
}
