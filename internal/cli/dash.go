package cli

import (
	"github.com/spf13/cobra"

	"github.com/zapgate-ai/zapgate/internal/tui/dashboard"
)

func newDashCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Terminal dashboard for a running gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			return dashboard.Run(addr)
		},
	}
	cmd.Flags().String("addr", "http://localhost:3000", "gateway base URL")
	return cmd
}
