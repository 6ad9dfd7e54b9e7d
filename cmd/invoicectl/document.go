package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/zmanup/invoicing-api/internal/domain"
	"github.com/zmanup/invoicing-api/internal/service"
	"gorm.io/gorm"
)

func newDocumentCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Operate on documents",
	}

	freeze := &cobra.Command{
		Use:   "mark-immutable DOCUMENT_ID",
		Short: "Freeze a document, e.g. after an allocation number was obtained out of band",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document id %q", args[0])
			}
			ctx := cmd.Context()
			err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := e.svc.Gate.MarkImmutable(ctx, tx, id); err != nil {
					return err
				}
				return e.svc.Audit.Record(ctx, tx, service.LogEntry{
					Action:     domain.AuditActionMarkImmutable,
					EntityType: "document",
					EntityID:   &id,
					ActorID:    "invoicectl",
					Details:    map[string]interface{}{"source": "invoicectl"},
				})
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document %s is immutable\n", id)
			return nil
		},
	}

	var asOf string
	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "Mark open documents past their due date as overdue",
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now().UTC()
			if asOf != "" {
				t, err := time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of date: %w", err)
				}
				at = t
			}
			marked, err := e.svc.Documents.MarkOverdue(cmd.Context(), at)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d documents marked overdue\n", marked)
			return nil
		},
	}
	overdue.Flags().StringVar(&asOf, "as-of", "", "reference date YYYY-MM-DD (default today)")

	cmd.AddCommand(freeze, overdue)
	return cmd
}
