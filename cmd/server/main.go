package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/alimatrix/alimatrix/internal/config"
	"github.com/alimatrix/alimatrix/internal/db"
	"github.com/alimatrix/alimatrix/internal/drafts"
	"github.com/alimatrix/alimatrix/internal/handlers"
	"github.com/alimatrix/alimatrix/internal/jobs"
	"github.com/alimatrix/alimatrix/internal/metrics"
	"github.com/alimatrix/alimatrix/internal/security"
	"github.com/alimatrix/alimatrix/internal/services"
	"github.com/alimatrix/alimatrix/internal/validation"
	"github.com/alimatrix/alimatrix/internal/web"
	"github.com/alimatrix/alimatrix/internal/wizard"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "alimatrix",
	Short:         "AliMatrix alimony questionnaire backend",
	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the cleanup job",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.Init(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("db init: %w", err)
		}
		logger.Info("schema up to date")
		return db.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env vars override it)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if !c.IsProduction() {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func serve(ctx context.Context) error {
	if err := db.Init(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("db init: %w", err)
	}
	defer db.Close()

	bdb, err := drafts.OpenBadger(cfg.DraftsPath)
	if err != nil {
		return err
	}
	defer bdb.Close()
	draftRepo := drafts.NewBadgerRepository(bdb, cfg.DraftLifetime())

	tokenStore, limitStore, debounceStore, closeStores, err := securityStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	m := metrics.New()
	v, err := validation.New()
	if err != nil {
		return fmt.Errorf("compile schemas: %w", err)
	}

	tokens := security.NewTokens(tokenStore, cfg.TokenTTL(), cfg.CSRF.MaxTokens, cfg.CSRF.KeepTokens)
	limiter := security.NewLimiter(limitStore)
	debounce := security.NewDebouncer(debounceStore, cfg.SubmitCooldown())

	svc := services.NewSubmissionService(db.Conn(), tokens, limiter, v, services.Options{
		RateLimit:  cfg.RateLimit.Limit,
		RateWindow: cfg.RateWindow(),
		Production: cfg.IsProduction(),
	}, logger.Named("submit"), m)

	ctl := wizard.New(drafts.NewStore(draftRepo, logger.Named("drafts")), v, svc, debounce, wizard.Options{
		SaveAttempts: cfg.Wizard.SaveAttempts,
		SaveBackoff:  cfg.SaveBackoff(),
	}, logger.Named("wizard"), m)

	h := handlers.New(tokens, svc, ctl, handlers.Options{
		AdminAPIKey:   cfg.AdminAPIKey,
		SecureCookies: cfg.IsProduction(),
	}, logger.Named("http"))

	sched, err := jobs.NewScheduler(cfg.SweepSchedule, &jobs.Sweeper{
		Tokens:     tokens,
		Limiter:    limiter,
		RateWindow: cfg.RateWindow(),
		Debounce:   debounce,
		DraftGC:    draftRepo.RunGC,
		Log:        logger.Named("sweep"),
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.Router(h, m, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("AliMatrix listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// securityStores returns the token, rate-limit and debounce stores: Redis
// when configured, process memory otherwise.
func securityStores(ctx context.Context) (tok, lim, deb security.Store, closeFn func(), err error) {
	if cfg.RedisURL == "" {
		return security.NewMemoryStore(), security.NewMemoryStore(), security.NewMemoryStore(), func() {}, nil
	}
	rdb, err := security.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger.Info("security stores on redis")
	return security.NewRedisStore(rdb, "alimatrix:csrf:"),
		security.NewRedisStore(rdb, "alimatrix:rate:"),
		security.NewRedisStore(rdb, "alimatrix:debounce:"),
		func() { _ = rdb.Close() }, nil
}
