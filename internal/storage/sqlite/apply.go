package sqlite

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/contact-recon/backend/internal/storage/models"
)

// Apply primitives. Each runs inside one transaction so a reviewer
// decision is honored completely or not at all.

// ApplyLink attaches an identity reference to a raw record.
func (c *Client) ApplyLink(recordID, identityID int64) error {
	res, err := c.db.Exec(
		`UPDATE raw_records SET identity_id = ?, updated_at = ? WHERE id = ?`,
		identityID, time.Now().Unix(), recordID)
	if err != nil {
		return fmt.Errorf("failed to link record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyCreateIdentity creates a new identity and links the source
// record to it.
func (c *Client) ApplyCreateIdentity(ident *models.Identity, recordID int64) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin create: %w", err)
	}
	defer tx.Rollback()

	entityJSON, _ := json.Marshal(ident.EntityIDs)
	now := time.Now().Unix()

	res, err := tx.Exec(`
		INSERT INTO identities (name, primary_email, secondary_email, code, domain,
			secondary_domain, entity_ids, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		ident.Name, nullable(ident.PrimaryEmail), nullable(ident.SecondaryEmail),
		nullable(ident.Code), nullable(ident.Domain), nullable(ident.SecondaryDomain),
		string(entityJSON), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create identity: %w", err)
	}

	identityID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	linkRes, err := tx.Exec(
		`UPDATE raw_records SET identity_id = ?, updated_at = ? WHERE id = ?`,
		identityID, now, recordID)
	if err != nil {
		return 0, fmt.Errorf("failed to link record to new identity: %w", err)
	}
	if n, _ := linkRes.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("raw record %d: %w", recordID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit create: %w", err)
	}

	return identityID, nil
}

// ApplyUpdateIdentity overwrites the fields set in the proposal.
func (c *Client) ApplyUpdateIdentity(identityID int64, p models.ProposedData) error {
	sets := []string{"updated_at = ?"}
	args := []interface{}{time.Now().Unix()}

	if p.Name != "" {
		sets = append(sets, "name = ?")
		args = append(args, p.Name)
	}
	if p.PrimaryEmail != "" {
		sets = append(sets, "primary_email = ?")
		args = append(args, p.PrimaryEmail)
	}
	if p.SecondaryEmail != "" {
		sets = append(sets, "secondary_email = ?")
		args = append(args, p.SecondaryEmail)
	}
	if p.Code != "" {
		sets = append(sets, "code = ?")
		args = append(args, p.Code)
	}
	if p.Domain != "" {
		sets = append(sets, "domain = ?")
		args = append(args, p.Domain)
	}
	if p.SecondaryDomain != "" {
		sets = append(sets, "secondary_domain = ?")
		args = append(args, p.SecondaryDomain)
	}
	if p.EntityIDs != nil {
		entityJSON, _ := json.Marshal(p.EntityIDs)
		sets = append(sets, "entity_ids = ?")
		args = append(args, string(entityJSON))
	}

	args = append(args, identityID)
	res, err := c.db.Exec(
		`UPDATE identities SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyMerge reassigns every raw-record reference from the source
// identity to the target, preserves the source's primary email as the
// target's secondary when free, and deactivates the source. All inside
// one transaction.
func (c *Client) ApplyMerge(sourceID, targetID int64) (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin merge: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Unix()

	var active int
	err = tx.QueryRow(`SELECT active FROM identities WHERE id = ?`, targetID).Scan(&active)
	if err != nil {
		return 0, fmt.Errorf("merge target %d: %w", targetID, ErrNotFound)
	}
	if active != 1 {
		return 0, fmt.Errorf("merge target %d is not active", targetID)
	}

	res, err := tx.Exec(
		`UPDATE raw_records SET identity_id = ?, updated_at = ? WHERE identity_id = ?`,
		targetID, now, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign records: %w", err)
	}
	moved, _ := res.RowsAffected()

	_, err = tx.Exec(`
		UPDATE identities SET
			secondary_email = COALESCE(secondary_email,
				(SELECT primary_email FROM identities WHERE id = ?)),
			secondary_domain = COALESCE(secondary_domain,
				(SELECT domain FROM identities WHERE id = ?)),
			updated_at = ?
		WHERE id = ?`, sourceID, sourceID, now, targetID)
	if err != nil {
		return 0, fmt.Errorf("failed to carry over source contact data: %w", err)
	}

	deact, err := tx.Exec(
		`UPDATE identities SET active = 0, updated_at = ? WHERE id = ? AND active = 1`,
		now, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate source identity: %w", err)
	}
	if n, _ := deact.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("merge source %d: %w", sourceID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit merge: %w", err)
	}

	return moved, nil
}

// ApplySplit creates a new identity seeded from a subset of the source
// identity's raw records and moves those records over.
func (c *Client) ApplySplit(sourceID int64, ident *models.Identity, recordIDs []int64) (int64, error) {
	if len(recordIDs) == 0 {
		return 0, fmt.Errorf("split requires at least one record")
	}

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin split: %w", err)
	}
	defer tx.Rollback()

	entityJSON, _ := json.Marshal(ident.EntityIDs)
	now := time.Now().Unix()

	res, err := tx.Exec(`
		INSERT INTO identities (name, primary_email, secondary_email, code, domain,
			secondary_domain, entity_ids, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		ident.Name, nullable(ident.PrimaryEmail), nullable(ident.SecondaryEmail),
		nullable(ident.Code), nullable(ident.Domain), nullable(ident.SecondaryDomain),
		string(entityJSON), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create split identity: %w", err)
	}

	newID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(recordIDs)), ",")
	args := []interface{}{newID, now, sourceID}
	for _, id := range recordIDs {
		args = append(args, id)
	}

	moveRes, err := tx.Exec(`UPDATE raw_records SET identity_id = ?, updated_at = ?
		WHERE identity_id = ? AND id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to move split records: %w", err)
	}
	if n, _ := moveRes.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("no records moved for split of identity %d", sourceID)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit split: %w", err)
	}

	return newID, nil
}
