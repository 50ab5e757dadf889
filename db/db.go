package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wrapped-fm/jellywrapped/models"
)

// DB is a wrapper around sql.DB holding the last fetched snapshot of
// items, users, and play statistics, so a re-run can skip the slow
// per-(item, user) statistics fetch.
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(dbPath string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// Initialize sets up the database tables
func (db *DB) Initialize() error {
	// seq preserves fetch order; ranking tie-breaks depend on it
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS users (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS items (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		album_artist TEXT,
		artists TEXT NOT NULL, -- JSON array; should be JSONB in PostgreSQL if we ever switch
		runtime_ticks INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS play_stats (
		item_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		play_count INTEGER NOT NULL,
		is_favorite BOOLEAN,
		played BOOLEAN,
		position_ticks INTEGER,
		key TEXT,
		PRIMARY KEY (item_id, user_name),
		FOREIGN KEY (item_id) REFERENCES items(id)
	)`)
	if err != nil {
		return err
	}

	return nil
}

// SaveSnapshot replaces any stored snapshot with the given one in a
// single transaction.
func (db *DB) SaveSnapshot(items []models.MediaItem, users []models.User) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"play_stats", "items", "users"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	for _, user := range users {
		if _, err := tx.Exec(`INSERT INTO users (id, name) VALUES (?, ?)`, user.ID, user.Name); err != nil {
			return err
		}
	}

	for _, item := range items {
		artists, err := json.Marshal(item.Artists)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
		INSERT INTO items (id, name, album_artist, artists, runtime_ticks)
		VALUES (?, ?, ?, ?, ?)`,
			item.ID, item.Name, item.AlbumArtist, string(artists), item.RunTimeTicks)
		if err != nil {
			return err
		}

		for userName, stats := range item.UserData {
			_, err = tx.Exec(`
			INSERT INTO play_stats (item_id, user_name, play_count, is_favorite, played, position_ticks, key)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
				item.ID, userName, stats.PlayCount, stats.IsFavorite, stats.Played,
				stats.PlaybackPositionTicks, stats.Key)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// LoadSnapshot rebuilds the item and user slices from the stored
// snapshot, in their original fetch order. Loading from an empty store
// is an error; run a full fetch first.
func (db *DB) LoadSnapshot() ([]models.MediaItem, []models.User, error) {
	users, err := db.loadUsers()
	if err != nil {
		return nil, nil, err
	}

	items, err := db.loadItems()
	if err != nil {
		return nil, nil, err
	}

	if len(users) == 0 && len(items) == 0 {
		return nil, nil, fmt.Errorf("snapshot store is empty; run without snapshot reuse first")
	}

	return items, users, nil
}

func (db *DB) loadUsers() ([]models.User, error) {
	rows, err := db.Query(`SELECT id, name FROM users ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user := models.User{}
		if err := rows.Scan(&user.ID, &user.Name); err != nil {
			return nil, err
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (db *DB) loadItems() ([]models.MediaItem, error) {
	rows, err := db.Query(`
	SELECT id, name, album_artist, artists, runtime_ticks
	FROM items
	ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		var artistsJSON string
		item := models.MediaItem{UserData: make(map[string]models.PlayStats)}
		err := rows.Scan(&item.ID, &item.Name, &item.AlbumArtist, &artistsJSON, &item.RunTimeTicks)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(artistsJSON), &item.Artists); err != nil {
			return nil, fmt.Errorf("corrupt artists column for item %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range items {
		if err := db.loadStats(&items[i]); err != nil {
			return nil, err
		}
	}

	return items, nil
}

func (db *DB) loadStats(item *models.MediaItem) error {
	rows, err := db.Query(`
	SELECT user_name, play_count, is_favorite, played, position_ticks, key
	FROM play_stats
	WHERE item_id = ?`, item.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var userName string
		stats := models.PlayStats{}
		err := rows.Scan(&userName, &stats.PlayCount, &stats.IsFavorite, &stats.Played,
			&stats.PlaybackPositionTicks, &stats.Key)
		if err != nil {
			return err
		}
		item.UserData[userName] = stats
	}

	return rows.Err()
}
