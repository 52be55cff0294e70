package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/gcs-go/internal/storage"
)

// uploadBufSize is the read buffer size handed to the streaming source;
// unrelated to the upload quantum the core engine frames internally.
const uploadBufSize = 64 * 1024

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path> <gs://bucket/object>",
		Short: "Upload a local file to a bucket object",
		Args:  cobra.ExactArgs(2),
		RunE:  runPut,
	}

	cmd.Flags().String("content-type", "", "object content type (auto-detected if unset)")

	return cmd
}

func runPut(cmd *cobra.Command, args []string) error {
	localPath, remoteURI := args[0], args[1]
	cc := mustCLIContext(cmd.Context())

	ref, err := parseObjectURI(remoteURI)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening local file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stating local file: %w", err)
	}

	if fi.IsDir() {
		return fmt.Errorf("%q is a directory, not a file", localPath)
	}

	contentType, _ := cmd.Flags().GetString("content-type")

	opts := []storage.WriteOption{}
	if contentType != "" {
		opts = append(opts, storage.WithContentType(contentType))
	}

	threshold, bufferSize, err := cc.Cfg.Upload.ResolveUpload()
	if err != nil {
		return fmt.Errorf("resolving upload config: %w", err)
	}

	opts = append(opts,
		storage.WithResumableUploadThreshold(threshold),
		storage.WithResumableUploadBufferSize(bufferSize),
	)

	source := storage.NewSeekableSource(f, uploadBufSize, fi.Size())

	progress := newProgressFunc(fmt.Sprintf("Uploading %s:", filepath.Base(localPath)), fi.Size())
	progress(0)

	highlights, err := cc.Client.WriteObject(cmd.Context(), ref, source, storage.NewWriteSpec(opts...))

	progress(fi.Size())

	if progressEnabled() {
		fmt.Fprintln(os.Stderr)
	}

	if err != nil {
		return fmt.Errorf("uploading %q: %w", remoteURI, err)
	}

	cc.Logger.Debug("upload complete", "uri", remoteURI, "generation", highlights.Generation, "size", highlights.Size)
	statusf("Uploaded %s (generation %d)\n", remoteURI, highlights.Generation)

	return nil
}
