package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ttsblind/pregen/internal/config"
	"github.com/ttsblind/pregen/internal/logging"
)

// Shared CLI flags (used across multiple command files)
var (
	cfgFile string
	verbose bool
)

// ServerConfig holds the loaded configuration (set by main, merged with
// --config before any command runs)
var ServerConfig *config.Config

// SetupRootCmd configures the root command with all subcommands and flags
func SetupRootCmd(c *config.Config) *cobra.Command {
	ServerConfig = c

	rootCmd := &cobra.Command{
		Use:   "pregen",
		Short: "pregen - TTS audio pre-generation",
		Long: `pregen synthesizes audio for every pending (text item, voice) pair of the
blind-test catalogue so listeners never wait on a live TTS call.

Use 'pregen serve' to expose the trigger endpoint, or 'pregen run' for a
single batch from the shell.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				if err := ServerConfig.MergeFile(cfgFile); err != nil {
					return err
				}
			}
			level := ServerConfig.Log.Level
			if verbose {
				level = "debug"
			}
			logging.Setup(os.Stderr, ServerConfig.Log.Format, level)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML file overriding the embedded defaults")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	// Add commands
	rootCmd.AddCommand(ServeCmd())
	rootCmd.AddCommand(RunCmd())
	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(CredentialsCmd())

	return rootCmd
}

func fatalf(format string, v ...any) {
	fmt.Fprintf(os.Stderr, "\033[31mError: "+format+"\033[0m\n", v...)
	os.Exit(1)
}
