package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zmanup/invoicing-api/internal/domain"
)

func newSequenceCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect and repair document numbering",
	}

	show := &cobra.Command{
		Use:   "show USER_ID",
		Short: "Show the last issued number and the next one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, user, err := e.actAs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			last, err := e.svc.Numbers.Current(ctx, user.ID)
			if err != nil {
				return err
			}
			next := domain.NextDocumentNumber(last, user.StartReceiptNumber)
			fmt.Fprintf(cmd.OutOrStdout(), "last issued: %d\nwatermark:   %d\nnext:        %s\n",
				last, user.StartReceiptNumber, domain.FormatDocumentNumber(next))
			return nil
		},
	}

	sync := &cobra.Command{
		Use:   "sync USER_ID",
		Short: "Raise the sequence to the highest existing document number",
		Long:  "Use after importing documents numbered elsewhere. The sequence is never lowered.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, user, err := e.actAs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			current, err := e.svc.Numbers.Sync(ctx, user.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sequence at %d\n", current)
			return nil
		},
	}

	cmd.AddCommand(show, sync)
	return cmd
}
