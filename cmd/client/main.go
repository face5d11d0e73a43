// Command rafyaudit is the terminal client of the audit API.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"rafyaudit/internal/auth"
	"rafyaudit/internal/backend"
	"rafyaudit/internal/config"
	"rafyaudit/internal/files"
	"rafyaudit/internal/utils"
)

var errNotLoggedIn = errors.New("not logged in, run `rafyaudit login` first")

// application carries what every subcommand needs once flags are parsed.
type application struct {
	configFile string
	logLevel   string
	logFormat  string
	backendURL string
	tokenDir   string

	in  *bufio.Reader
	out io.Writer

	logger  *zap.Logger
	client  *backend.Client
	tokens  *files.TokenFile
	session *auth.Session
}

func main() {
	if err := newRootCommand(os.Stdin, os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	app := &application{in: bufio.NewReader(in), out: out, logger: zap.NewNop()}
	root := &cobra.Command{
		Use:           "rafyaudit",
		Short:         "Terminal client for RAFY GOLD internal audits",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = app.logger.Sync()
		},
	}
	root.SetOut(out)
	app.bindFlags(root.PersistentFlags())

	root.AddCommand(
		app.loginCommand(),
		app.logoutCommand(),
		app.whoamiCommand(),
		app.listCommand(),
		app.showCommand(),
		app.pdfCommand(),
	)
	return root
}

func (a *application) bindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.configFile, "config", "", "Optional path to rafyaudit.yaml.")
	fs.StringVar(&a.logLevel, "log-level", "", "Override the configured log level.")
	fs.StringVar(&a.logFormat, "log-format", "", "Override the configured log format (structured or console).")
	fs.StringVar(&a.backendURL, "backend", "", "Override backend.base_url.")
	fs.StringVar(&a.tokenDir, "token-dir", files.DefaultTokenDir(), "Directory holding the saved token.")
}

func (a *application) setup() error {
	cfg, used, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.logFormat != "" {
		cfg.LogFormat = a.logFormat
	}
	if a.backendURL != "" {
		cfg.Backend.BaseURL = a.backendURL
	}
	logger, err := utils.NewLoggerFactory().CreateLogger(utils.LogLevel(cfg.LogLevel), utils.LogFormat(cfg.LogFormat))
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("configuration loaded", zap.String("config_file", used), zap.String("backend", cfg.Backend.BaseURL))

	a.tokens = files.NewTokenFile(a.tokenDir)
	a.client = backend.New(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(logger.Named("backend")),
		backend.WithTokens(a.tokens),
	)
	a.session = auth.New(a.client, a.tokens, logger)
	return nil
}

// requireSession restores the saved token and fails when it is missing or rejected.
func (a *application) requireSession(ctx context.Context) error {
	if err := a.session.Restore(ctx); err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			return errNotLoggedIn
		}
		return err
	}
	if !a.session.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

// prompt reads one line from the input when a flag was left empty.
func (a *application) prompt(label string) (string, error) {
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
