package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"finanzas/internal/auth"
	"finanzas/internal/cli"
	"finanzas/internal/storage"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *app) openStore(ctx context.Context) (*storage.Store, error) {
	return cli.OpenStore(ctx, a.cfg, a.logger)
}

func (a *app) authService(store *storage.Store) (*auth.Service, error) {
	return auth.NewService(store.Users, auth.Options{
		Secret:     []byte(a.cfg.JWTSecret),
		TokenTTL:   a.cfg.TokenTTL,
		BcryptCost: a.cfg.BcryptCost,
	})
}

func (a *app) addUserCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "adduser <nombre>",
		Short: "Create a user account",
		Long:  `Create a user account. The password is prompted for when --password is omitted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if password == "" {
				var err error
				if password, err = promptPassword(cmd); err != nil {
					return err
				}
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := a.authService(store)
			if err != nil {
				return err
			}
			user, err := svc.Register(ctx, args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s created with ID %d\n", user.Nombre, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func (a *app) passwdCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "passwd <nombre>",
		Short: "Reset the password of a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if password == "" {
				var err error
				if password, err = promptPassword(cmd); err != nil {
					return err
				}
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			svc, err := a.authService(store)
			if err != nil {
				return err
			}
			if err := svc.SetPassword(ctx, args[0], password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password (prompted when omitted)")
	return cmd
}

func (a *app) listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listusers",
		Short: "List user accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			users, err := store.Users.List(ctx)
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users found. Use 'finanzas-admin adduser' to create one.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNOMBRE\tEMAIL\tCREADO_EN")
			for _, u := range users {
				email := "-"
				if u.Email != nil {
					email = *u.Email
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Nombre, email, u.CreadoEn.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

// promptPassword reads a password without echo from a terminal, or a
// single line from any other input.
func promptPassword(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	sc := bufio.NewScanner(in)
	if sc.Scan() {
		return strings.TrimRight(sc.Text(), "\r"), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return "", fmt.Errorf("read password: %w", io.EOF)
}
