package commands

import (
	"fmt"

	"github.com/maltedev/spa-slots/internal/metrics"
	"github.com/maltedev/spa-slots/internal/storage"
	"github.com/spf13/cobra"
)

var (
	scrapeOutput   *string
	scrapeHeadless *bool
)

func init() {
	scrapeOutput = scrapeCmd.Flags().String("output", "", "The file to write the snapshot to. Defaults to SNAPSHOT_PATH.")
	scrapeHeadless = scrapeCmd.Flags().Bool("headless", true, "Run the browser without a window.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--output <path/to/appointments.json>]",
	Short: "Scrapes all free appointments once and writes the snapshot file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if *scrapeOutput != "" {
			cfg.Storage.SnapshotPath = *scrapeOutput
		}
		if cmd.Flags().Changed("headless") {
			cfg.Browser.Headless = *scrapeHeadless
		}

		a, err := newApp(cmd.Context(), cfg, log, metrics.NewNop())
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.scraper.Scrape(cmd.Context())
		if err != nil {
			return fmt.Errorf("scrape failed: %w", err)
		}

		if _, err := storage.WriteJSON(cfg.Storage.SnapshotPath, snap); err != nil {
			return err
		}

		log.Info("snapshot written", "path", cfg.Storage.SnapshotPath, "appointments", snap.Count)
		return nil
	},
}
