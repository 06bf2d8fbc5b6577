package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "wallets table",
		sql: `
		CREATE TABLE IF NOT EXISTS wallets (
			user_id TEXT PRIMARY KEY,
			balance NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			currency VARCHAR(8) NOT NULL DEFAULT 'ETB',
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
	},
	{
		name: "transactions table",
		sql: `
		CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES wallets(user_id) ON DELETE CASCADE,
			type VARCHAR(32) NOT NULL,
			amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
			status VARCHAR(20) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reference TEXT,
			metadata JSONB NOT NULL DEFAULT '{}',
			balance_after NUMERIC(18,2),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(reference) WHERE reference IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, status, created_at DESC);`,
	},
	{
		name: "game_rooms table",
		sql: `
		CREATE TABLE IF NOT EXISTS game_rooms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			host_id TEXT NOT NULL,
			players JSONB NOT NULL DEFAULT '[]',
			max_players INT NOT NULL CHECK (max_players BETWEEN 2 AND 100),
			entry_fee NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (entry_fee >= 0),
			prize_pool NUMERIC(18,2) NOT NULL DEFAULT 0 CHECK (prize_pool >= 0),
			status VARCHAR(20) NOT NULL,
			called_numbers INTEGER[] NOT NULL DEFAULT '{}',
			current_call INT,
			number_call_interval_ms BIGINT NOT NULL,
			telegram_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			telegram_channel_id TEXT NOT NULL DEFAULT '',
			last_call_time TIMESTAMPTZ,
			game_started_at TIMESTAMPTZ,
			game_ended_at TIMESTAMPTZ,
			winner_id TEXT NOT NULL DEFAULT '',
			win_pattern TEXT NOT NULL DEFAULT '',
			win_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_game_rooms_status_created ON game_rooms(status, created_at DESC);`,
	},
	{
		name: "bingo_cards table",
		sql: `
		CREATE TABLE IF NOT EXISTS bingo_cards (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL REFERENCES game_rooms(id) ON DELETE CASCADE,
			player_id TEXT NOT NULL,
			columns JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (room_id, player_id)
		);`,
	},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
