package cli

import (
	"errors"
	"fmt"

	"nuzlocke-bridge/internal/nuzlocke"
	"nuzlocke-bridge/internal/source"

	"github.com/spf13/cobra"
)

func newSeedCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write the built-in demo run to --file or --sqlite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			run, _ := nuzlocke.ParseSaveIndex(nuzlocke.DemoSavesData).First()
			raw := source.Raw{
				ActiveGameID: run.ID,
				SavesData:    nuzlocke.DemoSavesData,
				GameData:     nuzlocke.DemoGameData,
			}

			target, err := seed(cmd, opts, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded demo run %q into %s\n", run.ID, target)
			return nil
		},
	}
}

func seed(cmd *cobra.Command, opts *options, raw source.Raw) (string, error) {
	if opts.file != "" && opts.sqlite == "" {
		return opts.file, source.WriteExport(opts.file, raw)
	}

	kv, closeFn, err := opts.openKV(true)
	defer closeFn()
	if err != nil {
		return "", err
	}
	db, ok := kv.(*source.SQLiteKV)
	if !ok {
		return "", errors.New("seed target does not support writes")
	}

	ctx := cmd.Context()
	values := [][2]string{
		{source.KeyActiveGame, raw.ActiveGameID},
		{source.KeySaves, raw.SavesData},
		{source.GameKey(raw.ActiveGameID), raw.GameData},
	}
	for _, pair := range values {
		if err := db.Set(ctx, pair[0], pair[1]); err != nil {
			return "", fmt.Errorf("write %s: %w", pair[0], err)
		}
	}
	return opts.sqlite, nil
}
