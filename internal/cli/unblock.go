package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"slotwatch/internal/infra/storage/postgres"
)

var unblockSubject string

var unblockCmd = &cobra.Command{
	Use:   "unblock",
	Short: "Remove a subject (IP or credential id) from the target's blocklist",
	Run:   runUnblock,
}

func init() {
	unblockCmd.Flags().StringVar(&unblockSubject, "subject", "", "subject to unblock (required)")
	_ = unblockCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(unblockCmd)
}

func runUnblock(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if cfg.Database.URL == "" {
		slog.Error("No database configured, nothing to unblock")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	repo := postgres.NewBlocklistRepo(db)
	if err := repo.Remove(ctx, unblockSubject, cfg.Target.Name); err != nil {
		slog.Error("Failed to unblock subject", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Unblocked %s for %s\n", unblockSubject, cfg.Target.Name)
}
