// Package cli implements seqctl, the command line client for counter stores.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"autoinc/internal/config"
	"autoinc/internal/infrastructure/counterstore"
)

// Options wires the commands to their environment.
type Options struct {
	Out io.Writer

	// Config loads the configuration. Defaults to config.Load.
	Config func() (*config.Config, error)

	// Open connects the configured counter store. Defaults to counterstore.Open.
	Open func(ctx context.Context, cfg *config.Config) (*counterstore.Handle, error)
}

func (o *Options) defaults() {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Config == nil {
		o.Config = config.Load
	}
	if o.Open == nil {
		o.Open = openStore
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*counterstore.Handle, error) {
	return counterstore.Open(ctx, counterstore.Options{
		Backend:      cfg.Store.Backend,
		DatabaseURL:  cfg.Store.DatabaseURL,
		SQLitePath:   cfg.Store.SQLitePath,
		RedisURL:     cfg.Store.RedisURL,
		KeyPrefix:    cfg.Store.KeyPrefix,
		EnsureSchema: true,
	})
}

// NewRoot constructs the seqctl root command.
func NewRoot(opts Options) *cobra.Command {
	opts.defaults()

	root := &cobra.Command{
		Use:           "seqctl",
		Short:         "Inspect and administer autoinc counters",
		Long:          "seqctl talks to the counter store selected by COUNTER_STORE and its connection settings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(opts.Out)

	root.AddCommand(
		newNextCommand(&opts),
		newGetCommand(&opts),
		newListCommand(&opts),
		newRaiseCommand(&opts),
		newKeyCommand(&opts),
		newTokenCommand(&opts),
	)
	return root
}

// withStore runs fn against the configured store and closes it afterwards.
func withStore(cmd *cobra.Command, opts *Options, fn func(ctx context.Context, cfg *config.Config, h *counterstore.Handle) error) error {
	cfg, err := opts.Config()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	h, err := opts.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	return fn(ctx, cfg, h)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
