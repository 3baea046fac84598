package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/contact-recon/backend/internal/storage/models"
)

func (c *Client) GetDomainPattern(domain string) (*models.DomainPattern, error) {
	var p models.DomainPattern
	var companyName, entityJSON sql.NullString
	var isShared int
	var updatedAt int64

	err := c.db.QueryRow(`
		SELECT domain, convention, confidence, sample_size, is_shared,
			company_name, entity_ids, updated_at
		FROM domain_patterns WHERE domain = ?`, domain).Scan(
		&p.Domain, &p.Convention, &p.Confidence, &p.SampleSize,
		&isShared, &companyName, &entityJSON, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get domain pattern: %w", err)
	}

	p.IsShared = isShared == 1
	p.CompanyName = companyName.String
	if entityJSON.Valid && entityJSON.String != "" {
		json.Unmarshal([]byte(entityJSON.String), &p.EntityIDs)
	}
	p.UpdatedAt = time.Unix(updatedAt, 0)

	return &p, nil
}

func (c *Client) UpsertDomainPattern(p *models.DomainPattern) error {
	entityJSON, _ := json.Marshal(p.EntityIDs)
	isShared := 0
	if p.IsShared {
		isShared = 1
	}

	_, err := c.db.Exec(`
		INSERT INTO domain_patterns (domain, convention, confidence, sample_size,
			is_shared, company_name, entity_ids, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			convention = excluded.convention,
			confidence = excluded.confidence,
			sample_size = excluded.sample_size,
			is_shared = excluded.is_shared,
			company_name = excluded.company_name,
			entity_ids = excluded.entity_ids,
			updated_at = excluded.updated_at`,
		p.Domain, string(p.Convention), p.Confidence, p.SampleSize,
		isShared, nullable(p.CompanyName), string(entityJSON), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert domain pattern: %w", err)
	}

	return nil
}
