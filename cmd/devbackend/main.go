// Command devbackend serves an in-memory audit API for local development.
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

	"rafyaudit/internal/api"
	"rafyaudit/internal/utils"
)

type flags struct {
	address   string
	prefix    string
	emails    []string
	password  string
	tokenTTL  time.Duration
	logLevel  string
	logFormat string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	defaults := api.DefaultConfig()
	f := flags{
		address:   ":8001",
		prefix:    "/api",
		emails:    defaults.AllowedEmails,
		password:  defaults.Password,
		tokenTTL:  defaults.TokenTTL,
		logLevel:  string(utils.LogLevelInfo),
		logFormat: string(utils.LogFormatConsole),
	}
	cmd := &cobra.Command{
		Use:           "devbackend",
		Short:         "Serve the audit REST API from memory",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.address, "address", f.address, "Listen address.")
	fl.StringVar(&f.prefix, "prefix", f.prefix, "Path prefix of the API.")
	fl.StringSliceVar(&f.emails, "email", f.emails, "Email allowed to log in (repeatable).")
	fl.StringVar(&f.password, "password", f.password, "Shared password of the allowed emails.")
	fl.DurationVar(&f.tokenTTL, "token-ttl", f.tokenTTL, "Lifetime of issued tokens, 0 for none.")
	fl.StringVar(&f.logLevel, "log-level", f.logLevel, "Log level.")
	fl.StringVar(&f.logFormat, "log-format", f.logFormat, "Log format (structured or console).")
	return cmd
}

func run(ctx context.Context, f flags) error {
	logger, err := utils.NewLoggerFactory().CreateLogger(utils.LogLevel(f.logLevel), utils.LogFormat(f.logFormat))
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg := api.DefaultConfig()
	cfg.AllowedEmails = f.emails
	cfg.Password = f.password
	cfg.TokenTTL = f.tokenTTL
	backend := api.NewServer(api.NewStore(cfg), logger)

	srv := &http.Server{
		Addr:              f.address,
		Handler:           backend.NewRouter(f.prefix),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("dev backend listening",
			zap.String("address", f.address), zap.String("prefix", f.prefix), zap.Strings("emails", f.emails))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
