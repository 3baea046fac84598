package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contact-recon/backend/internal/storage/models"
)

const identityColumns = `id, name, primary_email, secondary_email, code, domain,
	secondary_domain, entity_ids, active, created_at, updated_at`

func (c *Client) InsertIdentity(id *models.Identity) (int64, error) {
	entityJSON, _ := json.Marshal(id.EntityIDs)
	now := time.Now().Unix()

	res, err := c.db.Exec(`
		INSERT INTO identities (name, primary_email, secondary_email, code, domain,
			secondary_domain, entity_ids, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		id.Name, nullable(id.PrimaryEmail), nullable(id.SecondaryEmail),
		nullable(id.Code), nullable(id.Domain), nullable(id.SecondaryDomain),
		string(entityJSON), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert identity: %w", err)
	}

	return res.LastInsertId()
}

func (c *Client) GetIdentity(id int64) (*models.Identity, error) {
	row := c.db.QueryRow(`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return scanIdentity(row)
}

func scanIdentity(row interface{ Scan(...interface{}) error }) (*models.Identity, error) {
	var ident models.Identity
	var primaryEmail, secondaryEmail, code, domain, secondaryDomain, entityJSON sql.NullString
	var active int
	var createdAt, updatedAt int64

	err := row.Scan(
		&ident.ID, &ident.Name, &primaryEmail, &secondaryEmail, &code,
		&domain, &secondaryDomain, &entityJSON, &active, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan identity: %w", err)
	}

	ident.PrimaryEmail = primaryEmail.String
	ident.SecondaryEmail = secondaryEmail.String
	ident.Code = code.String
	ident.Domain = domain.String
	ident.SecondaryDomain = secondaryDomain.String
	if entityJSON.Valid && entityJSON.String != "" {
		json.Unmarshal([]byte(entityJSON.String), &ident.EntityIDs)
	}
	ident.Active = active == 1
	ident.CreatedAt = time.Unix(createdAt, 0)
	ident.UpdatedAt = time.Unix(updatedAt, 0)

	return &ident, nil
}

// FindIdentityByEmail matches against both primary and secondary email.
func (c *Client) FindIdentityByEmail(email string) (*models.Identity, error) {
	row := c.db.QueryRow(`SELECT `+identityColumns+` FROM identities
		WHERE active = 1 AND (primary_email = ? OR secondary_email = ?) LIMIT 1`,
		email, email)
	return scanIdentity(row)
}

// ListIdentitiesByDomain returns active identities whose primary or
// secondary domain matches.
func (c *Client) ListIdentitiesByDomain(domain string) ([]models.Identity, error) {
	return c.queryIdentities(`SELECT `+identityColumns+` FROM identities
		WHERE active = 1 AND (domain = ? OR secondary_domain = ?)`, domain, domain)
}

// ListIdentitiesByEntityID returns active identities associated with a
// known external entity.
func (c *Client) ListIdentitiesByEntityID(entityID string) ([]models.Identity, error) {
	pattern := `%"` + entityID + `"%`
	return c.queryIdentities(`SELECT `+identityColumns+` FROM identities
		WHERE active = 1 AND entity_ids LIKE ?`, pattern)
}

func (c *Client) ListActiveIdentities() ([]models.Identity, error) {
	return c.queryIdentities(`SELECT ` + identityColumns + ` FROM identities WHERE active = 1 ORDER BY id`)
}

func (c *Client) queryIdentities(query string, args ...interface{}) ([]models.Identity, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *ident)
	}

	return identities, rows.Err()
}

func (c *Client) CountIdentities() (int, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM identities WHERE active = 1`).Scan(&n)
	return n, err
}
