package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"autoinc/internal/domain/auth"
)

type tokenOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newTokenCommand(opts *Options) *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}

			svc := auth.NewJWTService(auth.JWTConfig{
				Secret:   cfg.Auth.JWTSecret,
				Issuer:   cfg.Auth.Issuer,
				TokenTTL: ttl,
			})
			token, expiresAt, err := svc.IssueToken(subject, roles)
			if err != nil {
				return err
			}
			return printJSON(cmd, tokenOutput{Token: token, ExpiresAt: expiresAt})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringSliceVar(&roles, "role", nil, "granted role, repeatable ("+auth.RoleCounterAdmin+", "+auth.RoleCounterReader+", "+auth.RoleEntityWriter+")")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default JWT_TTL)")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
