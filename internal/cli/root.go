// Package cli implements the meatctl command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/meatlens/backend/config"
	"github.com/meatlens/backend/internal/app"
	"github.com/meatlens/backend/internal/logger"
)

// rootOptions are the global flags plus the stack built from them
type rootOptions struct {
	configFile string
	logLevel   string

	app *app.App
}

// NewRootCommand builds the meatctl command tree
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "meatctl",
		Short: "Classify, filter and unify scraped meat listings",
		Long: `meatctl classifies Hebrew meat product names into cut and grade, merges
listings of the same product across retailers and manages the auto-learner's
review queue and approvals.`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd.Context(), cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default searches ./config.yaml, ./config/, /etc/meatlens/)")
	root.PersistentFlags().StringVarP(&opts.logLevel, "log-level", "l", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newClassifyCommand(opts),
		newUnifyCommand(opts),
		newFilterCommand(opts),
		newLearningCommand(opts),
		newReferenceCommand(opts),
	)
	return root, opts
}

// Execute runs meatctl with os.Args. The stack is closed even when a command fails.
func Execute() {
	ctx := context.Background()
	root, opts := newRootCommand()

	err := root.ExecuteContext(ctx)
	if closeErr := opts.teardown(ctx); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *rootOptions) setup(ctx context.Context, stderr io.Writer) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
		Output:      stderr,
	})

	o.app, err = app.New(ctx, cfg, log)
	return err
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configFile == "" {
		return config.Load()
	}
	path, err := homedir.Expand(o.configFile)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}
	return config.LoadFrom(path)
}

func (o *rootOptions) teardown(ctx context.Context) error {
	if o.app == nil {
		return nil
	}
	err := o.app.Close(ctx)
	o.app = nil
	return err
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
