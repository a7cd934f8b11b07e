package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/memohai/wadesk/internal/accounts"
	"github.com/memohai/wadesk/internal/db"
	"github.com/memohai/wadesk/internal/db/store"
	"github.com/memohai/wadesk/internal/logger"
)

func newAdminCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage staff accounts from the command line",
	}
	cmd.AddCommand(newAdminCreateCommand(opts), newAdminResetPasswordCommand(opts))
	return cmd
}

func newAdminCreateCommand(opts *rootOptions) *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}
			return withAccounts(cmd.Context(), opts, func(ctx context.Context, svc *accounts.Service) error {
				account, err := svc.Create(ctx, accounts.CreateAccountRequest{
					Name:     name,
					Email:    email,
					Password: password,
					Role:     role,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s account %s (%s)\n", account.Role, account.Email, account.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&role, "role", accounts.RoleAdmin, "admin, supervisor or agent")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAdminResetPasswordCommand(opts *rootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "New password: ")
			if err != nil {
				return err
			}
			return withAccounts(cmd.Context(), opts, func(ctx context.Context, svc *accounts.Service) error {
				list, err := svc.List(ctx, accounts.ListAccountsRequest{Query: email, Limit: 50})
				if err != nil {
					return err
				}
				for _, account := range list.Items {
					if strings.EqualFold(account.Email, email) {
						if err := svc.ResetPassword(ctx, account.ID, accounts.ResetPasswordRequest{NewPassword: password}); err != nil {
							return err
						}
						fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", account.Email)
						return nil
					}
				}
				return accounts.ErrAccountNotFound
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "login email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func withAccounts(ctx context.Context, opts *rootOptions, fn func(context.Context, *accounts.Service) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	return fn(ctx, accounts.NewService(log, store.New(pool)))
}

// readPassword reads without echo from a terminal, or one line from piped input.
func readPassword(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return checkPassword(string(raw))
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(password string) (string, error) {
	if len(password) < accounts.MinPasswordLength {
		return "", accounts.ErrWeakPassword
	}
	return password, nil
}
