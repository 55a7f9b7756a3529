package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/CPowerMav/PieSS/internal/clock"
	"github.com/CPowerMav/PieSS/internal/ephemeris"
	"github.com/CPowerMav/PieSS/internal/hardware"
	"github.com/CPowerMav/PieSS/internal/scheduler"
	"github.com/CPowerMav/PieSS/internal/transform"
)

var (
	passesLimit   int
	passesHorizon time.Duration
	passesAll     bool
)

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "List upcoming passes with their visibility",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if passesHorizon > 0 {
			cfg.Search.Horizon = passesHorizon
		}

		ctx := cmd.Context()
		clk := clock.Real{}
		loc := resolveLocation(ctx, cfg.Location, logger)

		es, err := newLoader(cfg.TLE, clk, logger).Load(ctx)
		if err != nil {
			return err
		}
		src, err := ephemeris.New(es.Entry)
		if err != nil {
			return err
		}

		obs := transform.NewObserverPosition(loc.Latitude, loc.Longitude, loc.ElevationM)
		cands, err := newScheduler(cfg, logger).Upcoming(ctx, src, obs, clk.Now(), 0)
		if err != nil {
			return err
		}

		var shown []scheduler.Candidate
		for _, c := range cands {
			if passesAll || c.Decision.Visible {
				shown = append(shown, c)
			}
			if passesLimit > 0 && len(shown) >= passesLimit {
				break
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s (NORAD %d) from %s, elements %s old\n\n",
			es.Entry.Name, es.Entry.NORADID, loc, es.Age(clk.Now()).Round(time.Minute))
		renderPasses(cmd.OutOrStdout(), shown, time.Local)
		return nil
	},
}

func init() {
	passesCmd.Flags().IntVarP(&passesLimit, "count", "n", 10, "maximum passes to list, 0 for all")
	passesCmd.Flags().DurationVar(&passesHorizon, "horizon", 0, "search window, defaults to the configured horizon")
	passesCmd.Flags().BoolVarP(&passesAll, "all", "a", false, "include passes that will not be visible")
}

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("135")).Bold(true)
	visibleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7CFC00"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
)

// renderPasses writes one line per pass:
//
//	Rise                 Dur    Peak        Dir  Visible
//	2025-01-15 06:12 PM  6m10s  62° @ 140°  S    yes
func renderPasses(w io.Writer, cands []scheduler.Candidate, loc *time.Location) {
	if len(cands) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No passes in the search window"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-20s %-7s %-11s %-4s %s", "Rise", "Dur", "Peak", "Dir", "Visible")))
	for _, c := range cands {
		p := c.Pass
		line := fmt.Sprintf("%-20s %-7s %-11s %-4s ",
			p.Rise.In(loc).Format("2006-01-02 03:04 PM"),
			p.Duration().Round(time.Second),
			fmt.Sprintf("%.0f° @ %.0f°", p.PeakElevation, p.PeakAzimuth),
			hardware.DirectionFromAzimuth(p.PeakAzimuth),
		)
		if c.Decision.Visible {
			line += visibleStyle.Render("yes")
		} else {
			line = dimStyle.Render(line + "no (" + strings.TrimSpace(c.Decision.Reason) + ")")
		}
		fmt.Fprintln(w, line)
	}
}
