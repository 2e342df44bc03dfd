package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"slotwatch/internal/infra/storage/postgres"
)

var statsLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recent run statistics for the target",
	Run:   runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsLimit, "limit", 50, "maximum records to show")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if cfg.Database.URL == "" {
		fmt.Println("No database configured, statistics unavailable")
		return
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	recs, err := postgres.NewOutcomeRepo(db).ListRecent(ctx, cfg.Target.Name, statsLimit)
	if err != nil {
		slog.Error("Failed to list run statistics", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DETECTED\tOUTCOME\tLOCATION\tNOTES")
	for _, rec := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.DetectedAt.Format("2006-01-02 15:04:05"), rec.Outcome, rec.Location, rec.Notes)
	}
	_ = w.Flush()
}
