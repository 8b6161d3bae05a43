package cli

import (
	"fmt"
	"time"

	"nuzlocke-bridge/internal/modules/bridge/client"
	"nuzlocke-bridge/internal/pkg/log"

	"github.com/spf13/cobra"
)

func newSyncCommand(opts *options) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "sync [server-url]",
		Short: "Keep a bridge server up to date until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeFn, err := opts.openSource()
			defer closeFn()
			if err != nil {
				return err
			}

			if interval <= 0 {
				interval = opts.cfg.SyncInterval
			}
			url := opts.serverURL(args)

			c := client.NewSyncClient(src, client.WithLogger(log.GetLogger()))
			c.StartAutoSync(url, interval)
			fmt.Fprintf(cmd.ErrOrStderr(), "syncing to %s every %s (Ctrl+C to stop)\n", url, interval)

			<-cmd.Context().Done()
			c.Stop()
			return nil
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "check interval (defaults to BRIDGE_SYNC_INTERVAL_MS)")
	return cmd
}
