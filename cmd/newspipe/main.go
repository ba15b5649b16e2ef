// Command newspipe runs the news ingestion jobs. Every subcommand takes a
// single date argument (YYYY-MM-DD, "yesterday" or "today") naming the
// collection window it processes; the scheduler invokes one subcommand per
// window, never two concurrent runs over the same window.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/liangzhi-data/newspipe/internal/logger"
	"github.com/liangzhi-data/newspipe/internal/rundate"
)

func main() {
	_ = godotenv.Load()
	log := logger.New("newspipe")

	rootCmd := &cobra.Command{
		Use:   "newspipe",
		Short: "News ingestion, deduplication and fan-out jobs",
		Long: `Newspipe processes one day of collected news at a time: cleaning and
partitioning the raw crawl, annotating through the NLP pipeline with
duplicate suppression, extracting event fragments, and fanning the canonical
store out to the relational, search and archive destinations.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newPartitionCmd(log),
		newAnnotateCmd(log),
		newFragmentsCmd(log),
		newSyncMySQLCmd(log),
		newSyncSearchCmd(log),
		newArchiveCmd(log),
		newPushCmd(log),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// resolveDay parses the positional date argument; a bad or missing date is
// the one fatal startup condition every job shares.
func resolveDay(args []string) (time.Time, error) {
	return rundate.Resolve(args[0], time.Now())
}
