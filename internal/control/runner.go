package control

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"slotwatch/internal/connectivity"
	"slotwatch/internal/core/config"
	"slotwatch/internal/core/domain"
	"slotwatch/internal/health"
	"slotwatch/internal/identity"
	"slotwatch/internal/infra/notify"
	redisclient "slotwatch/internal/infra/redis"
	"slotwatch/internal/infra/storage"
	"slotwatch/internal/infra/storage/memory"
	"slotwatch/internal/infra/storage/postgres"
	"slotwatch/internal/orchestrator"
	"slotwatch/internal/probe"
	"slotwatch/internal/record"
	"slotwatch/internal/rotation"
)

// Process exit codes, part of the contract with the scheduler.
const (
	ExitOK        = 0 // success, no availability, captcha cooldown, skipped
	ExitError     = 1 // unclassified or terminal error
	ExitExhausted = 2 // nothing left to rotate to; a fresh invocation may help
)

// MigrationsDir is where goose migrations live relative to the working
// directory.
var MigrationsDir = "migrations"

// Runner wires every component for one invocation.
type Runner struct {
	cfg          *config.AppConfig
	governor     *rotation.CooldownGovernor
	orch         *orchestrator.Orchestrator
	recorder     *record.Recorder
	healthServer *health.Server
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
}

// NewRunner creates a Runner with all dependencies initialized.
func NewRunner(ctx context.Context, cfg *config.AppConfig) (*Runner, error) {
	r := &Runner{cfg: cfg, log: slog.Default().With("component", "control")}

	// 1. Durable storage: Postgres when configured, memory otherwise.
	var (
		blocklistRepo storage.BlocklistRepository
		outcomeRepo   storage.OutcomeRepository
		lookupRepo    storage.LookupRepository
		stateRepo     storage.StateRepository
		store         *memory.MemoryStorage
	)

	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(MigrationsDir); err != nil {
			_ = db.Close()
			return nil, err
		}
		r.db = db
		blocklistRepo = postgres.NewBlocklistRepo(db)
		outcomeRepo = postgres.NewOutcomeRepo(db)
		lookupRepo = postgres.NewLookupRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store = memory.NewMemoryStorage()
		blocklistRepo = memory.NewBlocklistRepo(store)
		outcomeRepo = memory.NewOutcomeRepo(store)
		lookupRepo = memory.NewLookupRepo(store)
		slog.Warn("No database configured, blocklist will not survive this invocation")
	}

	// 2. Run state: Redis when configured, memory otherwise.
	if cfg.Redis.URL != "" {
		rc, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.redisClient = rc
		stateRepo = rc
	} else {
		if store == nil {
			store = memory.NewMemoryStorage()
		}
		stateRepo = memory.NewStateRepo(store)
		slog.Warn("No redis configured, rotation pointer and cooldown will not survive this invocation")
	}

	// 3. Components.
	r.governor = rotation.NewCooldownGovernor(cfg.Target.Name, stateRepo)

	manager := identity.NewManager(
		identity.ExecRunner{},
		cfg.Rotation.SettleDelay,
		cfg.Rotation.ActivateCommandTimout,
	)

	validator := connectivity.NewValidator(connectivity.Config{
		Services:             cfg.Lookup.Services,
		LookupTimeout:        cfg.Lookup.Timeout,
		ReachabilityAttempts: cfg.Rotation.ReachabilityAttempts,
		ReachabilityDelay:    cfg.Rotation.ReachabilityDelay,
		ReachabilityTimeout:  cfg.Rotation.ReachabilityTimeout,
		RecheckAfter:         cfg.Blocklist.RecheckAfter,
	}, blocklistRepo, lookupRepo)

	var creds orchestrator.CredentialSource
	if cfg.Target.RequiresCredentials {
		creds = rotation.NewCredentialRotator(
			cfg.Target.Name,
			cfg.Credentials,
			stateRepo,
			blocklistRepo,
			cfg.Blocklist.RecheckAfter,
		)
	}

	prober := probe.NewExecProber(cfg.Probe.Command, cfg.Probe.Timeout)

	r.orch = orchestrator.New(orchestrator.Config{
		Target:               cfg.Target.Name,
		TargetURL:            cfg.Target.URL,
		RequiresCredentials:  cfg.Target.RequiresCredentials,
		MaxIdentityRotations: cfg.Rotation.MaxIdentityRotations,
		CooldownSkips:        cfg.Cooldown.Skips,
	}, cfg.Identities, manager, validator, creds, r.governor, blocklistRepo, prober)

	r.recorder = record.NewRecorder(
		cfg.Target.Name,
		cfg.Target.Location,
		outcomeRepo,
		notify.NewTelegram(cfg.Telegram),
	)

	// 4. Optional health/metrics listener for the duration of the run.
	if cfg.Server.Port > 0 {
		checkers := map[string]health.Checker{}
		if r.db != nil {
			checkers["database"] = r.db.Health
		}
		r.healthServer = health.NewServer(cfg.Server.Port, checkers)
		go func() {
			if err := r.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("health server failed", "error", err)
			}
		}()
	}

	return r, nil
}

// Run executes one invocation and returns the process exit code.
func (r *Runner) Run(ctx context.Context) int {
	skip, err := r.governor.ShouldSkip(ctx)
	if err != nil {
		r.log.Error("cooldown check failed", "error", err)
		return ExitError
	}
	if skip {
		return ExitOK
	}

	out, err := r.orch.Run(ctx)
	if out.Code != "" {
		r.recorder.Record(ctx, out)
	}

	if err != nil {
		if errors.Is(err, orchestrator.ErrIdentitiesExhausted) ||
			errors.Is(err, orchestrator.ErrRotationLimit) ||
			errors.Is(err, rotation.ErrCredentialsExhausted) {
			r.log.Error("rotation options exhausted", "error", err)
			return ExitExhausted
		}
		r.log.Error("invocation failed", "error", err)
		return ExitError
	}

	switch out.Code {
	case domain.OutcomeSuccess, domain.OutcomeNoAvailability, domain.OutcomeCaptchaRequired:
		r.log.Info("invocation finished", "outcome", out.Code, "detail", out.Detail)
		return ExitOK
	default:
		r.log.Error("invocation finished with terminal failure",
			"outcome", out.Code, "detail", out.Detail)
		return ExitError
	}
}

// Close releases connections and stops the health listener.
func (r *Runner) Close() {
	if r.healthServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.healthServer.Stop(ctx)
	}
	if r.redisClient != nil {
		_ = r.redisClient.Close()
	}
	if r.db != nil {
		_ = r.db.Close()
	}
}
