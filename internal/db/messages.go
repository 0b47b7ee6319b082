package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ainternet/ainthub/internal/models"
)

const messageColumns = "id, from_agent, to_agent, poll_type, content, session_id, metadata, created_at, read_at"

// InsertMessage appends a message to the recipient's inbox. The call returns
// only after the row is durably written.
func InsertMessage(d *sql.DB, m *models.Message) error {
	meta, err := marshalMetadata(m.Metadata)
	if err != nil {
		return err
	}
	_, err = d.Exec(
		`INSERT INTO messages (id, from_agent, to_agent, poll_type, content, session_id, metadata, created_at, read_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.FromAgent, m.ToAgent, m.PollType, m.Content, m.SessionID, meta, m.CreatedAt, m.ReadAt,
	)
	return err
}

// GetMessageByID retrieves a message by ID. Returns (nil, nil) when the
// message does not exist.
func GetMessageByID(d *sql.DB, id string) (*models.Message, error) {
	row := d.QueryRow("SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// PullInbox returns the messages addressed to agent in ascending created_at
// order (IDs break ties). Expired messages are deleted rather than returned.
// When markRead is set, read_at is stamped on every returned unread message
// inside the same transaction, so two concurrent pulls never both observe a
// message as unread.
func PullInbox(d *sql.DB, agent string, includeRead, markRead bool, now int64) ([]models.Message, error) {
	tx, err := d.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := "SELECT " + messageColumns + " FROM messages WHERE to_agent = ?"
	if !includeRead {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := tx.Query(query, agent)
	if err != nil {
		return nil, err
	}

	var live []models.Message
	var expired []string
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		if MessageExpired(m.Metadata, now) {
			expired = append(expired, m.ID)
			continue
		}
		live = append(live, *m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, id := range expired {
		if _, err := tx.Exec("DELETE FROM messages WHERE id = ?", id); err != nil {
			return nil, err
		}
	}

	if markRead {
		for i := range live {
			if live[i].ReadAt != nil {
				continue
			}
			if _, err := tx.Exec("UPDATE messages SET read_at = ? WHERE id = ? AND read_at IS NULL", now, live[i].ID); err != nil {
				return nil, err
			}
			readAt := now
			live[i].ReadAt = &readAt
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return live, nil
}

// CountPendingMessages returns the number of unread, unexpired messages
// across all inboxes.
func CountPendingMessages(d *sql.DB, now int64) (int, error) {
	rows, err := d.Query("SELECT metadata FROM messages WHERE read_at IS NULL")
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var meta string
		if err := rows.Scan(&meta); err != nil {
			return 0, err
		}
		metadata, err := unmarshalMetadata(meta)
		if err != nil {
			return 0, err
		}
		if !MessageExpired(metadata, now) {
			count++
		}
	}
	return count, rows.Err()
}

// MessageHistory returns up to limit messages sent to or from agent,
// newest first, optionally filtered by session.
func MessageHistory(d *sql.DB, agent, sessionID string, limit int) ([]models.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE (to_agent = ? OR from_agent = ?)"
	args := []any{agent, agent}
	if sessionID != "" {
		query += " AND session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// MessageExpired reports whether metadata carries an "expires" timestamp
// (unix seconds, number or numeric string) at or before now. Expiry is
// evaluated lazily at read time; there is no sweeper.
func MessageExpired(metadata map[string]any, now int64) bool {
	v, ok := metadata["expires"]
	if !ok {
		return false
	}
	var expires int64
	switch t := v.(type) {
	case float64:
		expires = int64(t)
	case int64:
		expires = t
	case string:
		parsed, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return false
		}
		expires = parsed
	default:
		return false
	}
	return expires <= now
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}

func unmarshalMetadata(raw string) (map[string]any, error) {
	metadata := make(map[string]any)
	if raw == "" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return metadata, nil
}

func scanMessage(s rowScanner) (*models.Message, error) {
	var m models.Message
	var meta string
	err := s.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &m.PollType, &m.Content, &m.SessionID, &meta, &m.CreatedAt, &m.ReadAt)
	if err != nil {
		return nil, err
	}
	m.Metadata, err = unmarshalMetadata(meta)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
