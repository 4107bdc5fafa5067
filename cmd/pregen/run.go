package cli

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ttsblind/pregen/internal/svc"
)

func RunCmd() *cobra.Command {
	var (
		maxItems int
		language string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pre-generation batch and print its summary as JSON",
		Run: func(cmd *cobra.Command, args []string) {
			if maxItems < 0 {
				maxItems = ServerConfig.Pregen.DefaultMax
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svcCtx, err := svc.NewServiceContext(ctx, *ServerConfig)
			if err != nil {
				fatalf("%v", err)
			}
			summary, err := svcCtx.Pregen.Run(ctx, maxItems, language)
			svcCtx.Close()
			if err != nil {
				fatalf("pre-generation failed: %v", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(summary)
		},
	}
	cmd.Flags().IntVar(&maxItems, "max", -1, "maximum items to attempt (default Pregen.DefaultMax)")
	cmd.Flags().StringVar(&language, "language", "", "only process this language")
	return cmd
}
