package cli

import (
	"encoding/json"
	"sync"
	"time"

	"nuzlocke-bridge/internal/modules/bridge/tasks"
	"nuzlocke-bridge/internal/pkg/log"
	"nuzlocke-bridge/internal/pkg/pubsub"

	"github.com/spf13/cobra"
)

func newWatchCommand(opts *options) *cobra.Command {
	var (
		interval time.Duration
		events   string
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print change events as JSON lines",
		Long: `watch polls the local source and prints one JSON object per event
({"type":..., "data":..., "at":...}). Unchanged data produces no output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := pubsub.ParseKinds(events)
			if err != nil {
				return err
			}

			src, closeFn, err := opts.openSource()
			defer closeFn()
			if err != nil {
				return err
			}

			if interval <= 0 {
				interval = opts.cfg.PollInterval
			}

			// 事件在 emitter 的调度 goroutine 中同步回调，编码器需要加锁
			var mu sync.Mutex
			enc := json.NewEncoder(cmd.OutOrStdout())
			broker := pubsub.NewBroker()
			broker.Subscribe(func(ev pubsub.Event) {
				mu.Lock()
				defer mu.Unlock()
				if err := enc.Encode(ev); err != nil {
					log.GetLogger().Warn("write event failed", log.Err(err))
				}
			}, kinds...)

			emitter := tasks.NewPollingEmitter(src, broker, interval, nil, log.GetLogger())
			emitter.Start(cmd.Context())
			defer emitter.Stop()

			if once {
				return nil
			}
			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "poll interval (defaults to BRIDGE_POLL_INTERVAL_MS)")
	cmd.Flags().StringVar(&events, "events", "", "comma separated event types to print (dataUpdate,teamUpdate,statsUpdate,error)")
	cmd.Flags().BoolVar(&once, "once", false, "observe once and exit")
	return cmd
}
