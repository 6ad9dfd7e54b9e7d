package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/zmanup/invoicing-api/internal/report"
)

func newReportCmd(e *env) *cobra.Command {
	var (
		year   int
		outDir string
	)
	cmd := &cobra.Command{
		Use:     "report USER_ID documents|vat",
		Short:   "Write a yearly Excel report",
		Args:    cobra.ExactArgs(2),
		Example: "  invoicectl report 6f1c... vat --year 2025 -o ./out",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, user, err := e.actAs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, filename, err := e.svc.Reports.Generate(ctx, user.ID, report.Kind(args[1]), year)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			path := filepath.Join(outDir, filename)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "calendar year")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "output directory")
	return cmd
}
