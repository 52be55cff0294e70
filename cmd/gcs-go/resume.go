package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gcs-go/internal/storage"
)

func newResumeUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume-upload <local-path> <session-url>",
		Short: "Continue a resumable upload session from its persisted offset",
		Long: `Continue a resumable upload whose session URL was saved from an
earlier 'put' that did not complete (a network error after session init).
The session URL is queried for how much it has durably persisted before
any bytes are resent.`,
		Args: cobra.ExactArgs(2),
		RunE: runResumeUpload,
	}

	return cmd
}

func runResumeUpload(cmd *cobra.Command, args []string) error {
	localPath, sessionURL := args[0], args[1]
	cc := mustCLIContext(cmd.Context())

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening local file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stating local file: %w", err)
	}

	source := storage.NewSeekableSource(f, uploadBufSize, fi.Size())

	progress := newProgressFunc("Resuming upload:", fi.Size())
	progress(0)

	highlights, err := cc.Client.ResumeWriteObject(cmd.Context(), sessionURL, source, fi.Size())

	progress(fi.Size())

	if progressEnabled() {
		fmt.Fprintln(os.Stderr)
	}

	if err != nil {
		return fmt.Errorf("resuming upload: %w", err)
	}

	cc.Logger.Debug("resumed upload complete", "generation", highlights.Generation, "size", highlights.Size)
	statusf("Uploaded (generation %d)\n", highlights.Generation)

	return nil
}
