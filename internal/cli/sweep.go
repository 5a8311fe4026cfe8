package cli

import (
	"context"
	"log"
	"time"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/jobs"
	"github.com/spf13/cobra"
)

// NewSweepCmd expires overdue attempts once and exits, for use from an external scheduler.
func NewSweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue in-progress attempts as expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath)
		},
	}
}

func runSweep(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	c, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	sweeper, err := jobs.NewExpirySweeper(c.attempts, cfg.Attempts.SweepSchedule, time.Minute)
	if err != nil {
		return err
	}
	n, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	log.Printf("expired %d attempt(s)", n)
	return nil
}
