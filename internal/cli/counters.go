package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"autoinc/internal/config"
	"autoinc/internal/domain/counter"
	"autoinc/internal/infrastructure/counterstore"
	"autoinc/internal/infrastructure/http/v1/dto"
	"autoinc/pkg/logger"
)

func newNextCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "next <counter-id>",
		Short: "Allocate the next value of a counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, cfg *config.Config, h *counterstore.Handle) error {
				allocator := counter.NewAllocator(h.Store,
					counter.WithLogger(logger.Nop()),
					counter.WithTimeout(cfg.Store.Timeout),
				)
				value, err := allocator.Next(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, dto.CounterResponse{CounterID: args[0], Value: value})
			})
		},
	}
}

func newGetCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <counter-id>",
		Short: "Show the current value of a counter without advancing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, _ *config.Config, h *counterstore.Handle) error {
				record, err := h.Store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, dto.FromRecord(record))
			})
		},
	}
}

func newListCommand(opts *Options) *cobra.Command {
	var (
		prefix string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List counters ordered by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, opts, func(ctx context.Context, _ *config.Config, h *counterstore.Handle) error {
				records, err := h.Store.List(ctx, prefix, limit)
				if err != nil {
					return err
				}
				items := make([]dto.CounterResponse, 0, len(records))
				for _, r := range records {
					items = append(items, dto.FromRecord(r))
				}
				return printJSON(cmd, dto.NewListResponse(items))
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only counters whose id starts with prefix")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of counters (default 100)")
	return cmd
}

func newRaiseCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "raise <counter-id> <value>",
		Short: "Move a counter forward so the next value is above <value>",
		Long: "raise sets the counter to max(current, value). It never lowers a counter; " +
			"use it to continue numbering imported records.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			return withStore(cmd, opts, func(ctx context.Context, _ *config.Config, h *counterstore.Handle) error {
				current, err := h.Store.Raise(ctx, args[0], value)
				if err != nil {
					return err
				}
				return printJSON(cmd, dto.CounterResponse{CounterID: args[0], Value: current})
			})
		},
	}
}
