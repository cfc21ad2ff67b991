// Command ecm is the terminal client for the case management API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ecmdash/internal/config"
	"ecmdash/internal/dashboard"
	"ecmdash/internal/logging"
	"ecmdash/internal/remote"
	"ecmdash/internal/session"
)

var (
	// Global flags
	cfgPath  string
	apiURL   string
	verbose  bool
	logLevel string

	logger *zap.Logger
	deps   *app
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg   config.Client
	log   *zap.Logger
	store session.Store
	sess  *session.Session
	api   *remote.Client
}

func newApp(cfg config.Client, log *zap.Logger) (*app, error) {
	store, err := session.Open(cfg.SessionBackend, cfg.SessionPath)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	sess := session.New(store, log)
	return &app{
		cfg:   cfg,
		log:   log,
		store: store,
		sess:  sess,
		api:   remote.New(cfg.APIURL, sess, remote.WithLogger(log)),
	}, nil
}

func (a *app) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (a *app) gate() *dashboard.Gate { return dashboard.NewGate(a.sess, a.api, a.log) }

func (a *app) accounts() *dashboard.Accounts { return dashboard.NewAccounts(a.api, a.sess, a.log) }

func (a *app) reconciler() *dashboard.Reconciler { return dashboard.NewReconciler(a.api, a.log) }

func (a *app) form(rec *dashboard.Reconciler) *dashboard.CaseForm {
	f := dashboard.NewCaseForm(a.api, rec, a.sess, a.log)
	f.ConfirmAfterSave = a.cfg.ConfirmAfterSave
	return f
}

var rootCmd = &cobra.Command{
	Use:   "ecm",
	Short: "Enterprise case management client",
	Long: `ecm signs in to the case management API and works with cases from the
terminal.

Run "ecm dashboard" for the interactive case browser, or use the cases
subcommands for scripting.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadClient(cfgPath)
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.APIURL = apiURL
		}
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, verbose)
		if err != nil {
			return err
		}
		deps, err = newApp(cfg, logger)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if deps != nil {
			if err := deps.Close(); err != nil {
				logger.Warn("close session store", zap.Error(err))
			}
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default "+config.DefaultClientPath()+")")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL, overrides config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd, casesCmd, dashboardCmd, tasksCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
