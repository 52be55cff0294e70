package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(cc.Cfg)
	}

	fmt.Printf("endpoint.base_url:   %s\n", cc.Cfg.Endpoint.BaseURL)
	fmt.Printf("endpoint.project:    %s\n", cc.Cfg.Endpoint.Project)
	fmt.Printf("upload.resumable_threshold: %s\n", cc.Cfg.Upload.ResumableThreshold)
	fmt.Printf("upload.buffer_size:         %s\n", cc.Cfg.Upload.BufferSize)
	fmt.Printf("read.resume_attempts:       %d\n", cc.Cfg.Read.ResumeAttempts)
	fmt.Printf("retry.max_attempts:         %d\n", cc.Cfg.Retry.MaxAttempts)
	fmt.Printf("retry.time_limit:           %s\n", cc.Cfg.Retry.TimeLimit)
	fmt.Printf("logging.log_level:          %s\n", cc.Cfg.Logging.LogLevel)
	fmt.Printf("network.connect_timeout:    %s\n", cc.Cfg.Network.ConnectTimeout)
	fmt.Printf("network.user_agent:         %s\n", cc.Cfg.Network.UserAgent)

	return nil
}
