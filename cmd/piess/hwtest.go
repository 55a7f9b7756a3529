package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CPowerMav/PieSS/internal/clock"
	"github.com/CPowerMav/PieSS/internal/hardware"
)

var hwtestCycles int

var hwtestCmd = &cobra.Command{
	Use:   "hwtest",
	Short: "Cycle every LED and the servo flag to check the wiring",
	Long: "hwtest lights each configured LED in turn and moves the servo up and down.\n" +
		"With --cycles 0 it repeats until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		driver, err := hardware.Open(ctx, cfg.Hardware, logger)
		if err != nil {
			return err
		}
		defer driver.Close()

		leds := append(cfg.Alert.StageLEDs(), hardware.DirectionLEDs...)
		testCfg := hardware.DefaultSelfTestConfig()
		testCfg.Cycles = hwtestCycles

		return hardware.SelfTest(ctx, driver, leds, cfg.Hardware.Servo, clock.Real{}, testCfg, logger)
	},
}

func init() {
	hwtestCmd.Flags().IntVar(&hwtestCycles, "cycles", 1, "number of test cycles, 0 to run until interrupted")
}
