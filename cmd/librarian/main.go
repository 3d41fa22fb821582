// Command librarian runs the library HTTP API and its maintenance jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"libraryflow/internal/app"
	"libraryflow/internal/circulation"
	"libraryflow/internal/config"
	"libraryflow/internal/membership"
	"libraryflow/internal/server"
	"libraryflow/internal/storage/memory"
	"libraryflow/internal/storage/postgres"
	"libraryflow/internal/telemetry"
	"libraryflow/pkg/eventstore"
)

var version = "dev"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run executes one librarian command with the given arguments.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "librarian",
		Short:         "Library catalog, circulation and acquisitions service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("LIBRARIAN_CONFIG"), "path to config TOML")

	root.AddCommand(
		c.serveCommand(),
		c.migrateCommand(),
		c.sweepCommand(),
		c.bootstrapCommand(),
		c.journalCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func (c *cli) serveCommand() *cobra.Command {
	var inMemory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := c.setup()
			if err != nil {
				return err
			}

			shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, version)
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error("telemetry shutdown", "err", err)
				}
			}()

			opts := appOptions(cfg, logger)
			var store app.Store
			if inMemory {
				logger.Warn("using in-memory storage, nothing survives a restart")
				store = memory.NewStore()
			} else {
				db, err := c.openDB(ctx, cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := postgres.Migrate(ctx, db); err != nil {
					return err
				}
				store = postgres.NewStore(db)
				opts.Journal = postgres.NewJournal(db, "librarian")
			}

			a := app.New(store, opts)
			router := server.NewRouter(a.Services, server.Options{
				JWTSecret: cfg.Auth.JWTSecret,
				TokenTTL:  cfg.Auth.TokenTTL,
				Logger:    logger,
			})
			srv := server.New(router, server.Config{
				Port:         cfg.Server.Port,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}, logger)
			return srv.Run(ctx, cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().BoolVar(&inMemory, "memory", false, "keep state in memory instead of postgres")
	return cmd
}

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := c.setup()
			if err != nil {
				return err
			}
			db, err := c.openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			logger.Info("schema up to date")
			return nil
		},
	}
}

// sweepCommand runs the periodic circulation jobs once. Schedule it with
// cron or a Kubernetes CronJob.
func (c *cli) sweepCommand() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue loans and expire stale holds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := c.setup()
			if err != nil {
				return err
			}
			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}

			db, err := c.openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			opts := appOptions(cfg, logger)
			opts.Journal = postgres.NewJournal(db, "librarian-sweep")
			a := app.New(postgres.NewStore(db), opts)

			return sweep(ctx, a.Services.Circulation, now, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "treat this RFC 3339 time as now")
	return cmd
}

func sweep(ctx context.Context, svc circulation.Service, now time.Time, out io.Writer) error {
	overdue, err := svc.SweepOverdueLoans(ctx, now)
	if err != nil {
		return fmt.Errorf("sweep overdue loans: %w", err)
	}
	expired, err := svc.ExpireHolds(ctx, now)
	if err != nil {
		return fmt.Errorf("expire holds: %w", err)
	}
	fmt.Fprintf(out, "overdue loans: %d\nexpired holds: %d\n", len(overdue), len(expired))
	return nil
}

// bootstrapCommand hires the first administrator, who can then hire the
// rest of the staff through the API.
func (c *cli) bootstrapCommand() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Hire the first administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := c.setup()
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("LIBRARIAN_ADMIN_PASSWORD")
			}

			db, err := c.openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			opts := appOptions(cfg, logger)
			opts.Limiter = nil
			opts.Journal = postgres.NewJournal(db, "librarian-bootstrap")
			a := app.New(postgres.NewStore(db), opts)

			staff, err := a.Services.Membership.HireStaff(ctx, membership.HireStaffInput{
				Name:     name,
				Email:    email,
				Role:     string(membership.RoleAdmin),
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hired administrator %s (%s)\n", staff.Email, staff.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "login password (default $LIBRARIAN_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// journalCommand prints journaled events as JSON lines.
func (c *cli) journalCommand() *cobra.Command {
	var (
		from      int64
		batch     int
		follow    bool
		interval  time.Duration
		aggregate string
		onlyNew   bool
	)
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print the event journal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, _, err := c.setup()
			if err != nil {
				return err
			}
			db, err := c.openDB(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			store := postgres.NewJournal(db, "").Store()
			if aggregate != "" {
				id, err := uuid.Parse(aggregate)
				if err != nil {
					return fmt.Errorf("--aggregate: %w", err)
				}
				return history(ctx, store, id, cmd.OutOrStdout())
			}
			if onlyNew {
				if from, err = store.LastID(ctx); err != nil {
					return err
				}
			}
			return tail(ctx, store, from, batch, follow, interval, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int64Var(&from, "from", 0, "print events after this id")
	cmd.Flags().IntVar(&batch, "batch", 500, "events fetched per query")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling for new events")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval with --follow")
	cmd.Flags().StringVar(&aggregate, "aggregate", "", "print the history of one loan, hold, copy or other aggregate")
	cmd.Flags().BoolVar(&onlyNew, "new", false, "skip events already in the journal")
	cmd.MarkFlagsMutuallyExclusive("aggregate", "follow")
	cmd.MarkFlagsMutuallyExclusive("new", "from")
	return cmd
}

type aggregateLog interface {
	LoadEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]eventstore.Event, error)
}

// history prints every event of one aggregate in version order.
func history(ctx context.Context, store aggregateLog, id uuid.UUID, out io.Writer) error {
	events, err := store.LoadEvents(ctx, id, 0, 0)
	if err != nil {
		return fmt.Errorf("load events of %s: %w", id, err)
	}
	if len(events) == 0 {
		return fmt.Errorf("no events for aggregate %s", id)
	}
	enc := json.NewEncoder(out)
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

type eventStream interface {
	StreamEvents(ctx context.Context, fromID int64, batchSize int) ([]eventstore.Event, error)
}

func tail(ctx context.Context, store eventStream, from int64, batch int, follow bool, interval time.Duration, out io.Writer) error {
	if batch <= 0 {
		return errors.New("--batch must be positive")
	}
	enc := json.NewEncoder(out)
	for {
		page, err := store.StreamEvents(ctx, from, batch)
		if err != nil {
			return fmt.Errorf("stream events: %w", err)
		}
		for _, e := range page {
			if err := enc.Encode(e); err != nil {
				return err
			}
			from = e.ID
		}
		if len(page) == batch {
			continue
		}
		if !follow {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// setup loads the configuration and builds the logger every command shares.
func (c *cli) setup() (config.Config, *charmLog.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(c.stderr, cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	charmLog.SetDefault(logger)
	return cfg, logger, nil
}

func (c *cli) openDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	pool := postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return postgres.Open(connectCtx, cfg.Database.URL, pool)
}

func appOptions(cfg config.Config, logger *charmLog.Logger) app.Options {
	loan, hold, fine := cfg.Policy.Policies(time.Now)
	return app.Options{
		Policies: circulation.Policies{Loan: loan, Hold: hold, Fine: fine},
		Limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.Auth.RatePerMinute)), cfg.Auth.RateBurst),
		Logger:   logger,
	}
}

// newLogger builds the process logger from the [log] config section.
func newLogger(w io.Writer, cfg config.LogConfig) (*charmLog.Logger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	formatter := charmLog.TextFormatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		formatter = charmLog.JSONFormatter
	case "logfmt":
		formatter = charmLog.LogfmtFormatter
	}
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          "librarian",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	}), nil
}
