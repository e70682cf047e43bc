package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2024112204_create_submissions_activity.sql
var createSubmissionsActivitySQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createSubmissionsActivitySQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS user_stats;
				DROP TABLE IF EXISTS user_achievements;
				DROP TABLE IF EXISTS activities;
				DROP TABLE IF EXISTS assignment_submissions`)
			return err
		},
	)
}
