package main

import (
	"context"
	"fmt"
	"os"

	"finanzas/internal/cli"
	"finanzas/internal/config"
	applog "finanzas/internal/log"

	"github.com/spf13/cobra"
)

type app struct {
	cfg    *config.Config
	logger *applog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "finanzas-admin",
		Short: "Administration tasks for the finanzas backend",
		Long: `finanzas-admin manages the finanzas database outside of the API:
schema migrations and user accounts. It reads the same environment
(and .env file) as the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cli.LoadConfig(applog.ComponentAdmin)
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}

	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.addUserCmd())
	root.AddCommand(a.passwdCmd())
	root.AddCommand(a.listUsersCmd())
	return root
}

func main() {
	ctx, stop := cli.SignalContext(context.Background())
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
