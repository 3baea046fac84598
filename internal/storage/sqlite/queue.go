package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/contact-recon/backend/internal/storage/models"
)

const queueColumns = `id, queue_type, source_ref, target_ref, proposed_data,
	current_data, confidence, reasoning, status, reviewed_by, reviewed_at, created_at`

// sourceFamily partitions the queue types by what source_ref points
// at: a raw record for link/create_user, an identity for
// update_user/merge/split. Both tables autoincrement from 1, so
// record N and identity N are unrelated rows that happen to share a
// number; pending suppression must never cross the two families.
func sourceFamily(t models.QueueType) []models.QueueType {
	switch t {
	case models.QueueLink, models.QueueCreateUser:
		return []models.QueueType{models.QueueLink, models.QueueCreateUser}
	default:
		return []models.QueueType{models.QueueUpdateUser, models.QueueMerge, models.QueueSplit}
	}
}

// HasPendingForSource reports whether any pending entry exists for a
// source reference within the queue-type family that shares its ID
// space.
func (c *Client) HasPendingForSource(queueType models.QueueType, sourceRef int64) (bool, error) {
	family := sourceFamily(queueType)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(family)), ",")

	args := []interface{}{sourceRef}
	for _, t := range family {
		args = append(args, string(t))
	}

	var n int
	err := c.db.QueryRow(
		`SELECT COUNT(*) FROM queue_entries
		 WHERE source_ref = ? AND status = 'pending' AND queue_type IN (`+placeholders+`)`,
		args...).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check pending entries: %w", err)
	}
	return n > 0, nil
}

// InsertQueueEntry persists a new pending proposal. A duplicate pending
// entry for the same (queue_type, source_ref) is rejected by the
// partial unique index; callers also pre-check for the friendly path.
func (c *Client) InsertQueueEntry(e *models.QueueEntry) (int64, error) {
	proposedJSON, _ := json.Marshal(e.Proposed)
	var currentJSON interface{}
	if e.Current != nil {
		data, _ := json.Marshal(e.Current)
		currentJSON = string(data)
	}

	res, err := c.db.Exec(`
		INSERT INTO queue_entries (queue_type, source_ref, target_ref, proposed_data,
			current_data, confidence, reasoning, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending', ?)`,
		string(e.QueueType), e.SourceRef, e.TargetRef, string(proposedJSON),
		currentJSON, e.Confidence, nullable(e.Reasoning), time.Now().Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, ErrDuplicatePending
		}
		return 0, fmt.Errorf("failed to insert queue entry: %w", err)
	}

	return res.LastInsertId()
}

func (c *Client) GetQueueEntry(id int64) (*models.QueueEntry, error) {
	row := c.db.QueryRow(`SELECT `+queueColumns+` FROM queue_entries WHERE id = ?`, id)
	return scanQueueEntry(row)
}

func scanQueueEntry(row interface{ Scan(...interface{}) error }) (*models.QueueEntry, error) {
	var e models.QueueEntry
	var targetRef sql.NullInt64
	var proposedJSON string
	var currentJSON, reasoning, reviewedBy sql.NullString
	var reviewedAt sql.NullInt64
	var createdAt int64

	err := row.Scan(
		&e.ID, &e.QueueType, &e.SourceRef, &targetRef, &proposedJSON,
		&currentJSON, &e.Confidence, &reasoning, &e.Status,
		&reviewedBy, &reviewedAt, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue entry: %w", err)
	}

	if targetRef.Valid {
		e.TargetRef = &targetRef.Int64
	}
	json.Unmarshal([]byte(proposedJSON), &e.Proposed)
	if currentJSON.Valid && currentJSON.String != "" {
		var cur models.ProposedData
		if json.Unmarshal([]byte(currentJSON.String), &cur) == nil {
			e.Current = &cur
		}
	}
	e.Reasoning = reasoning.String
	e.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t := time.Unix(reviewedAt.Int64, 0)
		e.ReviewedAt = &t
	}
	e.CreatedAt = time.Unix(createdAt, 0)

	return &e, nil
}

// ListQueueEntries returns entries matching the filter, newest first.
// The domain filter matches the proposed data payload.
func (c *Client) ListQueueEntries(f models.QueueFilter) ([]models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE 1=1`
	args := []interface{}{}

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.QueueType != "" {
		query += ` AND queue_type = ?`
		args = append(args, string(f.QueueType))
	}
	if f.MinConfidence > 0 {
		query += ` AND confidence >= ?`
		args = append(args, f.MinConfidence)
	}
	if f.Domain != "" {
		query += ` AND proposed_data LIKE ?`
		args = append(args, `%"domain":"`+f.Domain+`"%`)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []models.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	return entries, rows.Err()
}

// TransitionQueueStatus moves an entry from one status to another. The
// WHERE clause on the current status makes the transition atomic; zero
// rows affected means the entry was not in the expected state.
func (c *Client) TransitionQueueStatus(id int64, from, to models.QueueStatus, reviewedBy string) (bool, error) {
	var res sql.Result
	var err error

	if reviewedBy != "" {
		res, err = c.db.Exec(
			`UPDATE queue_entries SET status = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ? AND status = ?`,
			string(to), reviewedBy, time.Now().Unix(), id, string(from))
	} else {
		res, err = c.db.Exec(
			`UPDATE queue_entries SET status = ? WHERE id = ? AND status = ?`,
			string(to), id, string(from))
	}
	if err != nil {
		return false, fmt.Errorf("failed to transition queue entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateQueueProposal merges reviewer modifications into the proposal
// before apply.
func (c *Client) UpdateQueueProposal(id int64, proposed models.ProposedData) error {
	proposedJSON, _ := json.Marshal(proposed)
	_, err := c.db.Exec(`UPDATE queue_entries SET proposed_data = ? WHERE id = ?`,
		string(proposedJSON), id)
	if err != nil {
		return fmt.Errorf("failed to update queue proposal: %w", err)
	}
	return nil
}

func (c *Client) CountQueueByStatus() (map[string]int, error) {
	return c.countGrouped(`SELECT status, COUNT(*) FROM queue_entries GROUP BY status`)
}

func (c *Client) CountQueueByType() (map[string]int, error) {
	return c.countGrouped(`SELECT queue_type, COUNT(*) FROM queue_entries GROUP BY queue_type`)
}

func (c *Client) countGrouped(query string) (map[string]int, error) {
	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		counts[key] = n
	}

	return counts, rows.Err()
}

// DeleteRejectedBefore removes rejected entries older than the cutoff,
// along with their audit rows. This is the only path that deletes
// audit history.
func (c *Client) DeleteRejectedBefore(cutoff time.Time) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin cleanup: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM audit_log WHERE queue_id IN
		(SELECT id FROM queue_entries WHERE status = 'rejected' AND created_at < ?)`,
		cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit rows: %w", err)
	}

	res, err := tx.Exec(`DELETE FROM queue_entries WHERE status = 'rejected' AND created_at < ?`,
		cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete rejected entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	return res.RowsAffected()
}
