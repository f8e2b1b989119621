package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zapgate-ai/zapgate/internal/config"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			if output == "" {
				output = "zapgate.json"
			}
			force, _ := cmd.Flags().GetBool("force")

			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			cfg := config.Config{
				Server: config.ServerConfig{Addr: ":3000"},
				Session: config.SessionConfig{
					AuthRootDir:   "./zapgate-auth",
					RestoreOnBoot: true,
				},
				Chat: config.ChatConfig{
					BridgeCommand: "node",
					BridgeArgs:    []string{"bridge/index.js"},
				},
				Webhooks: config.WebhookConfig{
					ReplyURL:  "https://example.com/webhooks/reply",
					StatusURL: "https://example.com/webhooks/status",
				},
				Media: config.MediaConfig{
					Dir:           "./zapgate-media",
					PublicBaseURL: "http://localhost:3000",
				},
				Storage: config.StorageConfig{Driver: "sqlite", DSN: "./zapgate.db"},
				Logging: config.LoggingConfig{Level: "info", Format: "json"},
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Printf("wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "output config file path (default: ./zapgate.json)")
	cmd.Flags().Bool("force", false, "overwrite an existing config file")
	return cmd
}
