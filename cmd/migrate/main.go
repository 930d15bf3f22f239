package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Applies every .sql file in the migrations directory, in name order.
// Files are expected to be idempotent (CREATE ... IF NOT EXISTS).
func main() {
	godotenv.Load()
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	dir := os.Getenv("MIGRATIONS_DIR")
	if dir == "" {
		dir = "./database/migrations"
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", dir).Msg("failed to read migrations directory")
	}

	var files []string
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Fatal().Err(err).Str("file", name).Msg("failed to read migration")
		}
		if _, err := conn.Exec(ctx, string(sql)); err != nil {
			logger.Fatal().Err(err).Str("file", name).Msg("migration failed")
		}
		logger.Info().Str("file", name).Msg("migration applied")
	}

	logger.Info().Int("count", len(files)).Msg("migrations complete")
}
