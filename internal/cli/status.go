package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	redisclient "slotwatch/internal/infra/redis"
	"slotwatch/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show rotation state and recent blocklist entries for the target",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()
	target := cfg.Target.Name

	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer func() { _ = rc.Close() }()

		pointer, err := rc.RotationPointer(ctx, target)
		if err != nil {
			slog.Error("Failed to read rotation pointer", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Rotation pointer: %d (of %d credentials)\n", pointer, len(cfg.Credentials))

		cooldown, err := rc.Cooldown(ctx, target)
		if err != nil {
			slog.Error("Failed to read cooldown", "error", err)
			os.Exit(1)
		}
		if cooldown == nil {
			fmt.Println("Cooldown: none")
		} else {
			fmt.Printf("Cooldown: %d skip(s) remaining, triggered at %s\n",
				cooldown.RemainingSkips, cooldown.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	} else {
		fmt.Println("No redis configured, rotation state unavailable")
	}

	if cfg.Database.URL == "" {
		fmt.Println("No database configured, blocklist unavailable")
		return
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	entries, err := postgres.NewBlocklistRepo(db).ListRecent(ctx, target, 20)
	if err != nil {
		slog.Error("Failed to list blocklist entries", "error", err)
		os.Exit(1)
	}

	fmt.Printf("\nRecent blocklist entries for %s:\n", target)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SUBJECT\tKIND\tBLOCKED AT\tREASON")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Subject, e.Kind, e.BlockedAt.Format("2006-01-02 15:04:05"), e.Reason)
	}
	_ = w.Flush()
}
