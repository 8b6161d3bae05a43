package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"nuzlocke-bridge/internal/modules/bridge/service"
	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/pkg/response"
	"nuzlocke-bridge/internal/pkg/xerrors"
	"nuzlocke-bridge/internal/source"

	"github.com/spf13/cobra"
)

func newQueryCommand(opts *options) *cobra.Command {
	var gameID string

	cmd := &cobra.Command{
		Use:       "query [endpoint]",
		Short:     "Answer an overlay query from the local source",
		Long:      "Endpoints: status (default), team, box, dead, bosses, full.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: service.AvailableEndpoints(),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, closeFn, err := opts.openSource()
			defer closeFn()
			if err != nil {
				return err
			}

			raw, err := src.Read(cmd.Context())
			if err != nil {
				if errors.Is(err, source.ErrNoActiveRun) {
					return writeQueryError(cmd, xerrors.NewMissingGameDataError())
				}
				return err
			}

			endpoint := ""
			if len(args) > 0 {
				endpoint = args[0]
			}
			id := gameID
			if id == "" {
				id = raw.ActiveGameID
			}

			idx := nuzlocke.ParseSaveIndex(raw.SavesData)
			out, err := service.Route(endpoint, id, idx, nuzlocke.ReadGameState(raw.GameData), service.Meta{DataSource: service.DataSourceReal})
			if err != nil {
				return writeQueryError(cmd, err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&gameID, "game-id", "g", "", "run id (defaults to the active run)")
	return cmd
}

// writeQueryError 以与 HTTP 接口相同的 JSON 格式输出错误
func writeQueryError(cmd *cobra.Command, err error) error {
	appErr, ok := xerrors.As(err)
	if !ok {
		return err
	}
	body, mErr := response.ErrorBody(cmd.Context(), appErr)
	if mErr != nil {
		return errors.Join(err, mErr)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))
	return err
}
