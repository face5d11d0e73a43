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

	"rafyaudit/internal/backend"
	"rafyaudit/internal/certs"
	"rafyaudit/internal/config"
	"rafyaudit/internal/crypto"
	"rafyaudit/internal/files"
	"rafyaudit/internal/metrics"
	"rafyaudit/internal/utils"
	"rafyaudit/internal/web"
)

const (
	shutdownTimeout = 10 * time.Second
	certWarnWindow  = 30 * 24 * time.Hour
)

type flags struct {
	configFile string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "rafyaudit-server",
		Short:         "Serve the RAFY GOLD internal audit web application",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.PersistentFlags().StringVar(&f.configFile, "config", "", "Optional path to rafyaudit.yaml.")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "Override the configured log level.")
	cmd.PersistentFlags().StringVar(&f.logFormat, "log-format", "", "Override the configured log format (structured or console).")
	return cmd
}

func run(ctx context.Context, f flags) error {
	cfg, used, err := config.Load(f.configFile)
	if err != nil {
		return err
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	logger, err := utils.NewLoggerFactory().CreateLogger(utils.LogLevel(cfg.LogLevel), utils.LogFormat(cfg.LogFormat))
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("config_file", used), zap.String("backend", cfg.Backend.BaseURL))

	if err := cfg.Validate(); err != nil {
		return err
	}
	secret, err := crypto.ParseSecret(cfg.Session.Secret)
	if err != nil {
		return err
	}
	cookies, err := web.NewCookieStore(secret, cfg.Session.SecureCookie, cfg.Session.MaxAge)
	if err != nil {
		return err
	}
	draftKey, err := crypto.DraftKey(secret)
	if err != nil {
		return err
	}
	drafts, err := files.NewDraftStore(cfg.Drafts.Directory, draftKey, cfg.Drafts.TTL)
	if err != nil {
		return err
	}

	m := metrics.New()
	client := backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logger.Named("backend")),
		backend.WithObserver(m),
	)
	app, err := web.New(web.Options{
		Backend: client,
		Cookies: cookies,
		Drafts:  drafts,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      app.NewRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	if cfg.Server.TLSCertFile != "" {
		cm := certs.NewCertManager(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		tlsCfg, err := cm.TLSConfig()
		if err != nil {
			return err
		}
		if leaf := tlsCfg.Certificates[0].Leaf; cm.ExpiresWithin(leaf, certWarnWindow) {
			logger.Warn("certificate expires soon", zap.Time("not_after", leaf.NotAfter))
		}
		srv.TLSConfig = tlsCfg
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	purgeStop := make(chan struct{})
	defer close(purgeStop)
	go app.PurgeDrafts(purgeInterval(cfg.Drafts.TTL), purgeStop)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("address", srv.Addr), zap.Bool("tls", srv.TLSConfig != nil))
		if srv.TLSConfig != nil {
			errc <- srv.ListenAndServeTLS("", "")
			return
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// purgeInterval sweeps a few times per TTL, at most once a minute.
func purgeInterval(ttl time.Duration) time.Duration {
	every := ttl / 4
	if every < time.Minute {
		every = time.Minute
	}
	return every
}
