package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ttsblind/pregen/internal/db"
)

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the store applies pending migrations.
			store, err := db.NewSQLite(ServerConfig.Database.SQLitePath)
			if err != nil {
				return err
			}
			fmt.Printf("Database ready: %s\n", ServerConfig.Database.SQLitePath)
			return store.Close()
		},
	}
}
