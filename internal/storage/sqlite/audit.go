package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contact-recon/backend/internal/storage/models"
)

func (c *Client) InsertAudit(a *models.AuditEntry) error {
	var modsJSON interface{}
	if a.Modifications != nil {
		data, _ := json.Marshal(a.Modifications)
		modsJSON = string(data)
	}

	_, err := c.db.Exec(`
		INSERT INTO audit_log (queue_id, action, actor_id, timestamp, modifications,
			apply_result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.QueueID, a.Action, nullable(a.ActorID), time.Now().Unix(),
		modsJSON, nullable(a.ApplyResult), nullable(a.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

func (c *Client) ListAuditByQueue(queueID int64) ([]models.AuditEntry, error) {
	rows, err := c.db.Query(`
		SELECT id, queue_id, action, actor_id, timestamp, modifications,
			apply_result, error_message
		FROM audit_log WHERE queue_id = ? ORDER BY id`, queueID)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var a models.AuditEntry
		var actorID, modsJSON, applyResult, errorMessage sql.NullString
		var ts int64

		err := rows.Scan(&a.ID, &a.QueueID, &a.Action, &actorID, &ts,
			&modsJSON, &applyResult, &errorMessage)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		a.ActorID = actorID.String
		a.Timestamp = time.Unix(ts, 0)
		if modsJSON.Valid && modsJSON.String != "" {
			var mods models.ProposedData
			if json.Unmarshal([]byte(modsJSON.String), &mods) == nil {
				a.Modifications = &mods
			}
		}
		a.ApplyResult = applyResult.String
		a.ErrorMessage = errorMessage.String
		entries = append(entries, a)
	}

	return entries, rows.Err()
}
