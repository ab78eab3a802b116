package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dayahead/daocfg/internal/backend"
	"github.com/dayahead/daocfg/internal/logging"
	"github.com/dayahead/daocfg/internal/schema"
	"github.com/dayahead/daocfg/internal/ui"
)

// Transfer command flags
var (
	downloadOutput string
	uploadYes      bool
	uploadNoVerify bool
)

// downloadCmd saves a settings document to disk
var downloadCmd = &cobra.Command{
	Use:   "download <options|secrets>",
	Short: "Download a settings document",
	Long: `Download options.json or secrets.json from the webserver and write it,
indented with two spaces, to a local file.`,
	Example: `  # Writes options.json in the current directory
  dao-cfg download options

  # Keep a dated backup
  dao-cfg download options -o options-backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

// uploadCmd replaces a settings document with a local file
var uploadCmd = &cobra.Command{
	Use:   "upload <options|secrets> <file.json>",
	Short: "Upload a settings document",
	Long: `Replace options.json or secrets.json on the webserver with a local file.

The file must have a .json extension and hold valid JSON. When run from a
terminal you are asked to confirm the overwrite; --yes skips the question.
After the upload the document is read back to verify it arrived intact.`,
	Example: `  # Restore a backup
  dao-cfg upload options options-backup.json

  # Unattended
  dao-cfg upload secrets secrets.json --yes`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Output file (default <name>.json)")
	uploadCmd.Flags().BoolVarP(&uploadYes, "yes", "y", false, "Do not ask for confirmation")
	uploadCmd.Flags().BoolVar(&uploadNoVerify, "no-verify", false, "Skip reading the document back after upload")
}

// documentArg accepts the settings documents the webserver serves.
func documentArg(name string) error {
	switch name {
	case "options", "secrets":
		return nil
	}
	return backend.NewMalformedInputError(fmt.Sprintf("unknown document %q (use options or secrets)", name), nil)
}

func runDownload(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := documentArg(name); err != nil {
		return err
	}

	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	path := downloadOutput
	if path == "" {
		path = name + ".json"
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Download settings", "dao-cfg download "+name,
		ui.Param{Key: "Webserver", Value: s.baseURL},
		ui.Param{Key: "Output", Value: path},
	)

	n, err := downloadDocument(cmd.Context(), s.client(), name, path)
	if err != nil {
		p.PrintStep("Download "+name+".json", ui.StepFailed, "")
		p.PrintFailure("Download failed", err, troubleshooting(err))
		return fmt.Errorf("download failed: %w", err)
	}
	s.remember()

	p.PrintStep("Download "+name+".json", ui.StepComplete, fmt.Sprintf("%d bytes", n))
	p.PrintSuccess(name+".json saved",
		ui.Param{Key: "File", Value: path},
		ui.Param{Key: "Size", Value: fmt.Sprintf("%d bytes", n)},
	)
	return nil
}

// downloadDocument fetches a document and writes it formatted to path. It
// returns the number of bytes written.
func downloadDocument(ctx context.Context, c *backend.Client, name, path string) (int, error) {
	doc, err := c.GetSettings(ctx, name)
	if err != nil {
		return 0, err
	}
	data, err := backend.FormatDocument(doc)
	if err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	logging.Info("Document downloaded", zap.String("document", name), zap.Int("bytes", len(data)))
	return len(data), nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]
	if err := documentArg(name); err != nil {
		return err
	}

	s, err := openSession(true)
	if err != nil {
		return err
	}
	defer s.close()

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("Upload settings", "dao-cfg upload "+name,
		ui.Param{Key: "Webserver", Value: s.baseURL},
		ui.Param{Key: "File", Value: path},
	)

	doc, err := backend.LoadDocumentFile(path)
	if err != nil {
		p.PrintStep("Read "+filepath.Base(path), ui.StepFailed, "")
		p.PrintFailure("Upload failed", err, troubleshooting(err))
		return err
	}
	p.PrintStep("Read "+filepath.Base(path), ui.StepComplete, fmt.Sprintf("%d bytes", len(doc)))

	if !uploadYes && ui.IsTerminal(cmd.InOrStdin()) {
		confirm := ui.Confirmation{
			Title: "OVERWRITE " + name + ".json",
			Warnings: []string{
				"The copy on " + s.baseURL + " is replaced entirely",
				"The optimizer uses the new settings from its next run",
			},
			Note: "Tip: run 'dao-cfg download " + name + "' first to keep a backup.",
		}
		if !confirm.Ask(cmd.InOrStdin(), cmd.OutOrStdout()) {
			return nil
		}
	}

	verify := !uploadNoVerify
	if err := uploadDocument(cmd.Context(), s.client(), name, doc, verify); err != nil {
		p.PrintStep("Upload "+name+".json", ui.StepFailed, "")
		p.PrintFailure("Upload failed", err, troubleshooting(err))
		return fmt.Errorf("upload failed: %w", err)
	}
	s.remember()

	p.PrintStep("Upload "+name+".json", ui.StepComplete, "")
	if verify {
		p.PrintStep("Verify", ui.StepComplete, "")
	} else {
		p.PrintStep("Verify", ui.StepSkipped, "")
	}
	p.PrintSuccess(name+".json uploaded", ui.Param{Key: "Webserver", Value: s.baseURL})
	return nil
}

// uploadDocument posts doc and, when verify is set, reads it back and checks
// the webserver holds the same JSON.
func uploadDocument(ctx context.Context, c *backend.Client, name string, doc json.RawMessage, verify bool) error {
	if err := c.SaveSettings(ctx, name, doc); err != nil {
		return err
	}
	logging.Info("Document uploaded", zap.String("document", name), zap.Int("bytes", len(doc)))
	if !verify {
		return nil
	}

	stored, err := c.GetSettings(ctx, name)
	if err != nil {
		return fmt.Errorf("uploaded, but reading it back failed: %w", err)
	}
	same, err := sameDocument(doc, stored)
	if err != nil {
		return err
	}
	if !same {
		return fmt.Errorf("uploaded, but the webserver returned a different %s.json", name)
	}
	return nil
}

// sameDocument compares two documents ignoring formatting but not key order.
func sameDocument(a, b json.RawMessage) (bool, error) {
	da, err := schema.DecodeDocument(a)
	if err != nil {
		return false, backend.NewParseError("verify", "invalid local document", err)
	}
	db, err := schema.DecodeDocument(b)
	if err != nil {
		return false, backend.NewParseError("verify", "invalid stored document", err)
	}
	ea, err := schema.EncodeDocument(da)
	if err != nil {
		return false, err
	}
	eb, err := schema.EncodeDocument(db)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ea, eb), nil
}
