package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 2024112203_create_enrollments.sql
var createEnrollmentsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createEnrollmentsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `
				DROP TABLE IF EXISTS quiz_attempts;
				DROP TABLE IF EXISTS enrollment_quizzes;
				DROP TABLE IF EXISTS enrollment_lessons;
				DROP TABLE IF EXISTS enrollments`)
			return err
		},
	)
}
