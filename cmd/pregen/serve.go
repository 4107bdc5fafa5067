package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ttsblind/pregen/internal/logging"
	"github.com/ttsblind/pregen/internal/scheduler"
	"github.com/ttsblind/pregen/internal/server"
	"github.com/ttsblind/pregen/internal/svc"
)

func ServeCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the optional in-process schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable the request access log")
	return cmd
}

func runServe(quiet bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := *ServerConfig
	svcCtx, err := svc.NewServiceContext(ctx, c)
	if err != nil {
		return err
	}
	defer svcCtx.Close()

	if c.Pregen.Schedule != "" {
		sched, err := scheduler.New(c.Pregen.Schedule, c.Pregen.ScheduleMax, svcCtx.Pregen)
		if err != nil {
			return err
		}
		sched.Start()
		logging.Infof("Scheduled pre-generation: %q (max %d)", c.Pregen.Schedule, c.Pregen.ScheduleMax)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), c.Pregen.CallTimeout+5*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
		}()
	}

	logging.Infof("Starting %s on %s", c.Name, c.Addr())
	return server.Run(ctx, svcCtx, server.ServerOptions{Quiet: quiet})
}
