package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/zmanup/invoicing-api/internal/domain"
)

func newUserCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage business owner accounts",
	}

	var req domain.CreateUserRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a business owner",
		Example: `  invoicectl user create --email dana@example.co.il --business-name "Dana Design" \
    --business-id 515151515 --business-type morsheh --start-number 500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validator.New().Struct(&req); err != nil {
				return err
			}
			user, err := e.svc.Users.Create(cmd.Context(), &req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
	create.Flags().StringVar(&req.Email, "email", "", "login email (required)")
	create.Flags().StringVar(&req.BusinessName, "business-name", "", "business name (required)")
	create.Flags().StringVar(&req.BusinessID, "business-id", "", "dealer or company number")
	create.Flags().StringVar(&req.BusinessType, "business-type", "morsheh", "patur, morsheh or baam")
	create.Flags().StringVar(&req.Role, "role", "user", "user, accountant or admin")
	create.Flags().IntVar(&req.StartReceiptNumber, "start-number", 0, "first document number, 0 for the default")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("business-name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List business owners",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := e.svc.Users.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tBUSINESS\tTYPE\tROLE\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", u.ID, u.Email, u.BusinessName, u.BusinessType, u.Role, u.IsActive)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}
