package auditlog

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
)

type sqlLogger struct {
	db *sql.DB
}

func NewSqlLogger(db *sql.DB) *sqlLogger {
	return &sqlLogger{
		db: db,
	}
}

func (l *sqlLogger) Save(ctx context.Context, e Entry) error {
	jsonData, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}

	statement := `INSERT INTO audit_log (id, action, actor_id, group_id, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = l.db.ExecContext(ctx, statement, e.ID, e.Action, e.ActorID, e.GroupID, jsonData, e.CreatedAt)
	if err != nil {
		return err
	}

	return nil
}

func (l *sqlLogger) ListByGroup(ctx context.Context, groupID uuid.UUID, limit int) ([]Entry, error) {
	query := `SELECT id, action, actor_id, group_id, data, created_at FROM audit_log WHERE group_id = $1 ORDER BY created_at DESC LIMIT $2`
	result, err := l.db.QueryContext(ctx, query, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	entries := make([]Entry, 0)
	for result.Next() {
		var entry Entry
		var jsonData []byte
		if err := result.Scan(&entry.ID, &entry.Action, &entry.ActorID, &entry.GroupID, &jsonData, &entry.CreatedAt); err != nil {
			return entries, err
		}
		var data any
		if err := json.Unmarshal(jsonData, &data); err == nil {
			entry.Data = data
		}

		entries = append(entries, entry)
	}

	if err := result.Err(); err != nil {
		return entries, err
	}

	return entries, nil
}
