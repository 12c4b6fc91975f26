/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bibliotheque/apiserver/config"
	"github.com/bibliotheque/apiserver/internal/services"
	"github.com/bibliotheque/apiserver/internal/storage"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export lending data to object storage",
}

var exportLoansCmd = &cobra.Command{
	Use:   "loans",
	Short: "Upload every loan as CSV to STORAGE_BACKEND (minio or gcs)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg.LogLevel)
		ctx := cmd.Context()

		loans, conn, err := openLoans(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		objects, err := storage.NewFromConfig(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer objects.Close()

		result, err := services.NewExportService(loans, objects, cfg.Storage.ExportPrefix, services.WithLogger(logger)).ExportLoans(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d loans to %s/%s\n", result.Loans, result.Bucket, result.Key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportLoansCmd)
}
