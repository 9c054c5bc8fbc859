package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"focusbeat/backend/internal/repository"
	"focusbeat/backend/internal/stats"
	"focusbeat/backend/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats <profile>",
	Short: "Print a profile's focus stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if days < 1 || days > stats.MaxRangeDays {
			return fmt.Errorf("days must be between 1 and %d", stats.MaxRangeDays)
		}
		location, err := time.LoadLocation(cfg.Timer.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Timer.Timezone, err)
		}

		st, err := openStorage(cfg, logger.Named("store"))
		if err != nil {
			return err
		}
		defer st.Close()

		profile, err := repository.NewProfileRepository(st.db).GetByName(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("profile %s: %w", args[0], err)
		}

		recorder := stats.NewRecorder(store.Namespaced(st.store, profile.ID), location, logger.Named("stats"))
		now := time.Now()
		daily := recorder.Range(cmd.Context(), now, days)
		streak := recorder.Streak(cmd.Context(), now)

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"profile": profile.Name,
				"days":    daily,
				"streak":  streak,
			})
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tSESSIONS\tFOCUS")
		var total time.Duration
		for _, day := range daily {
			focus := time.Duration(day.TotalFocusMs) * time.Millisecond
			total += focus
			fmt.Fprintf(w, "%s\t%d\t%s\n", day.Date, day.SessionCount, focus.Round(time.Second))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\ntotal %s, streak %d day(s)\n", total.Round(time.Second), streak)
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("days", 7, "number of days ending today")
	statsCmd.Flags().Bool("json", false, "output as JSON")
}
