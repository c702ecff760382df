package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/hyperengineering/daybook/internal/export"
)

var (
	exportFormat string
	exportOutput string
	exportUpload bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all entries to a file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json or zip")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default daybook-export.<format>)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "Also upload the archive to configured backup storage (zip only)")
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "json" && exportFormat != "zip" {
		return fmt.Errorf("unknown format %q, want json or zip", exportFormat)
	}
	if exportUpload && exportFormat != "zip" {
		return fmt.Errorf("--upload requires --format zip")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := exportOutput
	if out == "" {
		out = "daybook-export." + exportFormat
	}

	var buf bytes.Buffer
	switch exportFormat {
	case "json":
		err = export.WriteJSON(ctx, a.store, &buf)
	case "zip":
		err = export.WriteArchive(ctx, a.store, &buf)
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported to %s (%d bytes)\n", out, buf.Len())

	if !exportUpload {
		return nil
	}

	if cfg.Backup.Bucket == "" {
		return fmt.Errorf("backup storage is not configured")
	}
	uploader, err := export.NewUploader(cfg.Backup)
	if err != nil {
		return fmt.Errorf("backup storage: %w", err)
	}
	exportID := ulid.Make().String()
	if err := uploader.Upload(ctx, exportID, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	url, expiry, err := uploader.PresignedURL(ctx, exportID)
	if err != nil {
		return fmt.Errorf("presign: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded as %s\ndownload (until %s): %s\n",
		exportID, expiry.Format("2006-01-02 15:04"), url)
	return nil
}
