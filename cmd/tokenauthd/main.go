// Command tokenauthd serves the token endpoint and guarded sample resources,
// and issues or inspects tokens offline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "tokenauthd",
		Short:         "Bearer token issuance and role-based access control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("TOKENAUTH_CONFIG"), "YAML config file (env TOKENAUTH_CONFIG)")
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, ".env files to load before reading config (default ./.env if present)")

	root.AddCommand(newServeCmd(flags), newTokenCmd(flags))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tokenauthd:", err)
		os.Exit(1)
	}
}
