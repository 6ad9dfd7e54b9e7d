package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zmanup/invoicing-api/internal/auth"
)

func newTokenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Bearer tokens",
	}

	issue := &cobra.Command{
		Use:     "issue EMAIL",
		Short:   "Issue a bearer token for a business owner",
		Args:    cobra.ExactArgs(1),
		Example: "  invoicectl token issue dana@example.co.il",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := e.svc.Users.GetByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !user.IsActive {
				return fmt.Errorf("user %s is inactive", user.Email)
			}
			token, expires, err := auth.NewTokenService(&e.cfg.Auth).Issue(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}

	cmd.AddCommand(issue)
	return cmd
}
