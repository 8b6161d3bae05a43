package cli

import (
	"fmt"

	"nuzlocke-bridge/internal/modules/bridge/client"
	"nuzlocke-bridge/internal/pkg/log"

	"github.com/spf13/cobra"
)

func newPushCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "push [server-url]",
		Short: "Push the current run to a bridge server once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeFn, err := opts.openSource()
			defer closeFn()
			if err != nil {
				return err
			}

			url := opts.serverURL(args)
			c := client.NewSyncClient(src, client.WithLogger(log.GetLogger()))
			if !c.Push(cmd.Context(), url) {
				return fmt.Errorf("push to %s failed", url)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed to %s\n", url)
			return nil
		},
	}
}
