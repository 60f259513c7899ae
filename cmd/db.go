package cmd

import (
	"github.com/emrgen/revision/internal/config"
	"github.com/emrgen/revision/internal/store"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(Migrate())
}

func Migrate() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadConfig()
			config.SetupLogging(cfg)

			db := config.GetDb(cfg)
			if err := store.NewGormStore(db).Migrate(); err != nil {
				logrus.Errorf("error migrating database: %v", err)
				return
			}

			color.Green("database migrated (%s)", cfg.DBType)
		},
	}

	return command
}
