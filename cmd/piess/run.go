package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/CPowerMav/PieSS/internal/alert"
	"github.com/CPowerMav/PieSS/internal/api"
	"github.com/CPowerMav/PieSS/internal/clock"
	"github.com/CPowerMav/PieSS/internal/hardware"
	"github.com/CPowerMav/PieSS/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track passes and drive the alert hardware until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		clk := clock.Real{}
		loc := resolveLocation(ctx, cfg.Location, logger)

		driver, err := hardware.Open(ctx, cfg.Hardware, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := driver.Close(); err != nil {
				logger.Warn("closing hardware driver", "error", err)
			}
		}()

		panel := hardware.NewPanel(driver, cfg.Hardware.Servo, cfg.Alert.StageLEDs(), clk, logger)
		machine := alert.NewMachine(cfg.Alert, panel, clk, logger)

		var opts []runner.Option
		if cfg.Status.Print {
			opts = append(opts, runner.WithStatusWriter(cmd.OutOrStdout()))
		}
		loop := runner.New(cfg.Loop, newLoader(cfg.TLE, clk, logger), newScheduler(cfg, logger), machine, loc, clk, logger, opts...)

		if cfg.HTTP.Addr != "" {
			srv := api.NewServer(cfg.HTTP, logger, loop)
			go func() {
				logger.Info("starting status server", "addr", cfg.HTTP.Addr, "auth_enabled", cfg.HTTP.Auth.Enabled())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("status server listen error", "error", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("status server shutdown error", "error", err)
				}
			}()
		}

		err = loop.Run(ctx)
		logger.Info("tracker stopped")
		return err
	},
}
