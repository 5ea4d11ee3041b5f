package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/tokenauth/auth"
	"github.com/jonwraymond/tokenauth/config"
)

func newTokenCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue or inspect tokens with the configured signing key",
	}
	cmd.AddCommand(newTokenIssueCmd(flags), newTokenInspectCmd(flags))
	return cmd
}

func newTokenIssueCmd(flags *globalFlags) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Validate credentials against the configured repository and print a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath, flags.envFiles...)
			if err != nil {
				return err
			}
			cfg.Observe.Logging.Enabled = false

			reg := prometheus.NewRegistry()
			a, err := newApp(cmd.Context(), cfg, appOptions{registerer: reg, gatherer: reg})
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			tok, err := a.issuer.Issue(cmd.Context(), auth.Credential{Username: username, Password: password})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"access_token": tok.AccessToken,
				"token_type":   tok.TokenType,
				"expires_in":   int64(tok.ExpiresIn() / time.Second),
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "user name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newTokenInspectCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [token]",
		Short: "Verify a token and print its claims; reads stdin when no token is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath, flags.envFiles...)
			if err != nil {
				return err
			}
			key, err := cfg.SigningKey(cmd.Context())
			if err != nil {
				return err
			}
			codec, err := auth.NewCodec(key, auth.CodecConfig{Issuer: cfg.Token.Issuer})
			if err != nil {
				return err
			}

			raw, err := tokenArg(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			claims, err := codec.Decode(raw)
			if err != nil {
				return err
			}
			roles := claims.Identity.Roles
			if roles == nil {
				roles = []string{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"user_id":    claims.Identity.UserID,
				"roles":      roles,
				"issuer":     claims.Issuer,
				"token_id":   claims.TokenID,
				"issued_at":  claims.IssuedAt.UTC().Format(time.RFC3339),
				"expires_at": claims.ExpiresAt.UTC().Format(time.RFC3339),
			})
		},
	}
}

func tokenArg(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
	if err != nil {
		return "", err
	}
	raw := strings.TrimSpace(string(b))
	if raw == "" {
		return "", fmt.Errorf("no token given")
	}
	return raw, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

