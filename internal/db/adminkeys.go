package db

import (
	"database/sql"
	"time"

	"github.com/ainternet/ainthub/internal/models"
)

// CreateAdminKey inserts a new operator key and returns its ID.
func CreateAdminKey(d *sql.DB, prefix string, hash []byte) (int64, error) {
	result, err := d.Exec(
		"INSERT INTO admin_keys (key_prefix, key_hash, created_at) VALUES (?, ?, ?)",
		prefix, hash, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAdminKeyByPrefix retrieves an operator key by its prefix.
func GetAdminKeyByPrefix(d *sql.DB, prefix string) (*models.AdminKey, error) {
	row := d.QueryRow(
		"SELECT id, key_prefix, key_hash, created_at, revoked_at FROM admin_keys WHERE key_prefix = ?",
		prefix,
	)
	var key models.AdminKey
	err := row.Scan(&key.ID, &key.KeyPrefix, &key.KeyHash, &key.CreatedAt, &key.RevokedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// CountAdminKeys returns the number of non-revoked operator keys.
func CountAdminKeys(d *sql.DB) (int, error) {
	var count int
	err := d.QueryRow("SELECT COUNT(*) FROM admin_keys WHERE revoked_at IS NULL").Scan(&count)
	return count, err
}
