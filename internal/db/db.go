package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            display_name TEXT NOT NULL,
            is_admin BOOLEAN DEFAULT FALSE,
            is_online BOOLEAN DEFAULT FALSE,
            last_active TIMESTAMPTZ DEFAULT NOW(),
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            sender_id INT NOT NULL,
            receiver_id INT NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            kind TEXT NOT NULL DEFAULT 'text',
            attachment_url TEXT,
            attachment_mime TEXT,
            attachment_name TEXT,
            encrypted BOOLEAN DEFAULT FALSE,
            ciphertext TEXT,
            iv TEXT,
            urgency TEXT NOT NULL DEFAULT 'normal',
            edited BOOLEAN DEFAULT FALSE,
            tombstoned BOOLEAN DEFAULT FALSE,
            deleted_by_sender BOOLEAN DEFAULT FALSE,
            deleted_by_receiver BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_pair_idx ON messages (sender_id, receiver_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS groups (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            creator_id INT NOT NULL,
            department_linked BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS group_members (
            group_id INT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            role TEXT NOT NULL DEFAULT 'member',
            joined_at TIMESTAMPTZ DEFAULT NOW(),
            last_read_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY (group_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS group_messages (
            id SERIAL PRIMARY KEY,
            group_id INT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            kind TEXT NOT NULL DEFAULT 'text',
            attachment_url TEXT,
            attachment_mime TEXT,
            attachment_name TEXT,
            encrypted BOOLEAN DEFAULT FALSE,
            ciphertext TEXT,
            iv TEXT,
            urgency TEXT NOT NULL DEFAULT 'normal',
            edited BOOLEAN DEFAULT FALSE,
            tombstoned BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS group_messages_group_idx ON group_messages (group_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS group_message_hides (
            message_id INT NOT NULL REFERENCES group_messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            user_lo INT NOT NULL,
            user_hi INT NOT NULL,
            last_activity TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY (user_lo, user_hi)
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_reads (
            user_id INT NOT NULL,
            peer_id INT NOT NULL,
            last_read_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY (user_id, peer_id)
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_hides (
            user_id INT NOT NULL,
            peer_id INT NOT NULL,
            hidden BOOLEAN DEFAULT TRUE,
            PRIMARY KEY (user_id, peer_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	logrus.Info("database migrations applied")
	return nil
}
