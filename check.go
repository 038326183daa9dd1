package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fiffu/slotwatch/lib/scraper"
	"github.com/spf13/cobra"
)

// newCheckCmd scrapes one page and prints what a subscriber would be shown,
// without touching the database.
func newCheckCmd() *cobra.Command {
	var (
		renderer   string
		chromePath string
		timeout    time.Duration
		maxDays    int
	)

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Scrape a page once and print its time slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := NewLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			var r scraper.Renderer
			switch renderer {
			case "http":
				r = scraper.NewHTTPRenderer(http.DefaultTransport, timeout)
			case "chrome":
				r = scraper.NewChromeRenderer(chromePath, timeout, maxDays, log)
			default:
				return fmt.Errorf("unknown renderer %q, use chrome or http", renderer)
			}
			s := scraper.New(r, scraper.DefaultURLRule(), scraper.DefaultSchema(), log)

			url, err := s.ValidateURL(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout+10*time.Second)
			defer cancel()

			page, err := s.Fetch(ctx, url)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n%s\n\n", page.Label, url)
			if len(page.Slots) == 0 {
				fmt.Fprintln(out, "No available time slots found.")
				return nil
			}
			fmt.Fprintf(out, "%d time slots:\n", len(page.Slots))
			for _, slot := range page.Slots {
				fmt.Fprintf(out, "  %s\n", slot.DisplayText)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&renderer, "renderer", "chrome", "page renderer, chrome or http")
	cmd.Flags().StringVar(&chromePath, "chrome-path", "", "path to the Chrome binary")
	cmd.Flags().DurationVar(&timeout, "timeout", 90*time.Second, "render timeout")
	cmd.Flags().IntVar(&maxDays, "max-days", 10, "maximum number of calendar days to open")
	return cmd
}
