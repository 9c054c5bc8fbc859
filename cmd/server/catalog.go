package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"focusbeat/backend/internal/ads"
	"focusbeat/backend/internal/audio"
	"focusbeat/backend/internal/model"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the playlist catalog and ad slot files",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [catalog.toml]",
	Short: "Check a playlist catalog and the ad slot file",
	Long: `Validate the playlist catalog given as argument, or the configured one.
Every mood needs at least three tracks. The configured ad slot file is
checked as well.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.Audio.CatalogPath
		if len(args) > 0 {
			path = args[0]
		}

		catalog, err := audio.LoadCatalog(path, logger.Named("catalog"))
		if err != nil {
			return err
		}
		source := path
		if source == "" {
			source = "built-in catalog"
		}
		fmt.Printf("%s: ok\n", source)
		for _, mood := range model.Moods {
			playlist, _ := catalog.Playlist(mood)
			fmt.Printf("  %-8s %d tracks\n", mood, len(playlist.Tracks))
		}

		slots, err := ads.LoadSlots(cfg.Ads.SlotsPath)
		if err != nil {
			return err
		}
		fmt.Printf("ad slots: %d ok\n", len(slots))
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
}
