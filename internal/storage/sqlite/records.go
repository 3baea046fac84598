package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contact-recon/backend/internal/storage/models"
)

const recordColumns = `id, raw_input, context_ids, identity_id, name1, name2, genre,
	email, domain, is_personal, confidence, extraction_status,
	name1_initial, name2_initial, role_label, reasoning, pipeline_version, updated_at`

func (c *Client) InsertRawRecord(rec *models.RawRecord) (int64, error) {
	contextJSON, _ := json.Marshal(rec.ContextIDs)

	res, err := c.db.Exec(
		`INSERT INTO raw_records (raw_input, context_ids, updated_at) VALUES (?, ?, ?)`,
		rec.RawInput, string(contextJSON), time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert raw record: %w", err)
	}

	return res.LastInsertId()
}

func (c *Client) GetRawRecord(id int64) (*models.RawRecord, error) {
	row := c.db.QueryRow(`SELECT `+recordColumns+` FROM raw_records WHERE id = ?`, id)
	return scanRecord(row)
}

func scanRecord(row interface{ Scan(...interface{}) error }) (*models.RawRecord, error) {
	var rec models.RawRecord
	var contextJSON sql.NullString
	var identityID sql.NullInt64
	var name1, name2, genre, email, domain sql.NullString
	var name1Init, name2Init, roleLabel, reasoning sql.NullString
	var isPersonal int
	var updatedAt int64

	err := row.Scan(
		&rec.ID, &rec.RawInput, &contextJSON, &identityID,
		&name1, &name2, &genre, &email, &domain,
		&isPersonal, &rec.Extraction.Confidence, &rec.Extraction.Status,
		&name1Init, &name2Init, &roleLabel, &reasoning,
		&rec.PipelineVersion, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw record: %w", err)
	}

	if contextJSON.Valid && contextJSON.String != "" {
		json.Unmarshal([]byte(contextJSON.String), &rec.ContextIDs)
	}
	if identityID.Valid {
		rec.IdentityID = &identityID.Int64
	}
	rec.Extraction.Name1 = name1.String
	rec.Extraction.Name2 = name2.String
	rec.Extraction.Genre = genre.String
	rec.Extraction.Email = email.String
	rec.Extraction.Domain = domain.String
	rec.Extraction.IsPersonal = isPersonal == 1
	rec.Extraction.Name1Initial = name1Init.String
	rec.Extraction.Name2Initial = name2Init.String
	rec.Extraction.RoleLabel = roleLabel.String
	rec.Extraction.Reasoning = reasoning.String
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	return &rec, nil
}

// UpdateExtraction writes the extraction annotation back onto a raw
// record. The raw input itself is never mutated.
func (c *Client) UpdateExtraction(recordID int64, ext models.ExtractionResult, pipelineVersion int) error {
	isPersonal := 0
	if ext.IsPersonal {
		isPersonal = 1
	}

	_, err := c.db.Exec(`
		UPDATE raw_records SET
			name1 = ?, name2 = ?, genre = ?, email = ?, domain = ?,
			is_personal = ?, confidence = ?, extraction_status = ?,
			name1_initial = ?, name2_initial = ?, role_label = ?, reasoning = ?,
			pipeline_version = ?, updated_at = ?
		WHERE id = ?`,
		nullable(ext.Name1), nullable(ext.Name2), nullable(ext.Genre),
		nullable(ext.Email), nullable(ext.Domain),
		isPersonal, ext.Confidence, string(ext.Status),
		nullable(ext.Name1Initial), nullable(ext.Name2Initial),
		nullable(ext.RoleLabel), nullable(ext.Reasoning),
		pipelineVersion, time.Now().Unix(), recordID,
	)
	if err != nil {
		return fmt.Errorf("failed to update extraction: %w", err)
	}

	return nil
}

// ListRecordsForProcessing returns records whose extraction is stale:
// either never processed, or processed by an older pipeline version
// when reprocess is set.
func (c *Client) ListRecordsForProcessing(pipelineVersion, limit int, reprocess bool) ([]models.RawRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM raw_records WHERE extraction_status = 'unprocessed'`
	args := []interface{}{}
	if reprocess {
		query = `SELECT ` + recordColumns + ` FROM raw_records
			WHERE pipeline_version < ? AND extraction_status != 'reviewed'`
		args = append(args, pipelineVersion)
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	return c.queryRecords(query, args...)
}

// ListRecordsByIdentity returns all raw records linked to an identity.
func (c *Client) ListRecordsByIdentity(identityID int64) ([]models.RawRecord, error) {
	return c.queryRecords(
		`SELECT `+recordColumns+` FROM raw_records WHERE identity_id = ? ORDER BY id`,
		identityID,
	)
}

func (c *Client) queryRecords(query string, args ...interface{}) ([]models.RawRecord, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query raw records: %w", err)
	}
	defer rows.Close()

	var records []models.RawRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func (c *Client) CountRawRecords() (int, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM raw_records`).Scan(&n)
	return n, err
}

func (c *Client) ExtractionStatusCounts() (map[string]int, error) {
	rows, err := c.db.Query(
		`SELECT extraction_status, COUNT(*) FROM raw_records GROUP BY extraction_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count extraction statuses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
