package cli

import (
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stewardhq/steward/internal/errors"
	"github.com/stewardhq/steward/internal/store"
)

// newMigrateCmd creates the migrate command: apply the schema and exit.
// Useful for deployments that disable auto-migration on serve.
func newMigrateCmd(state *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := GetLogger()

			db, err := gorm.Open(postgres.Open(state.cfg.Database.DSN), &gorm.Config{
				Logger: gormlogger.Default.LogMode(gormlogger.Silent),
			})
			if err != nil {
				return errors.Wrap(err, "connect to database")
			}
			defer func() {
				if sqlDB, dbErr := db.DB(); dbErr == nil {
					_ = sqlDB.Close()
				}
			}()

			s := store.New(db, logger)
			if err := s.AutoMigrate(cmd.Context()); err != nil {
				return err
			}

			logger.Info().Msg("schema migration complete")
			return nil
		},
	}
}
