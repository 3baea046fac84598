// Package queue owns the human-review queue: proposal intake with
// pending-duplicate suppression, the status state machine, approval
// with transactional apply per queue type, and the append-only audit
// trail. Every transition, including a failed apply, leaves an audit
// row.
package queue

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contact-recon/backend/internal/metrics"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/config"
	"github.com/contact-recon/backend/pkg/logger"
)

var (
	// ErrStateConflict means the entry is not in the status the
	// operation requires (already reviewed, already applied).
	ErrStateConflict = errors.New("queue entry not in required state")

	ErrNotFound = sqlite.ErrNotFound
)

// validNext is the entire status state machine. Transitions not listed
// here do not exist; applied and rejected are terminal.
var validNext = map[models.QueueStatus][]models.QueueStatus{
	models.StatusPending:  {models.StatusApproved, models.StatusRejected},
	models.StatusApproved: {models.StatusApplied},
}

func canTransition(from, to models.QueueStatus) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Manager struct {
	db        *sqlite.Client
	broker    *Broker
	bulkFloor float64
	retention time.Duration
}

func NewManager(db *sqlite.Client, broker *Broker, cfg config.QueueConfig) *Manager {
	return &Manager{
		db:        db,
		broker:    broker,
		bulkFloor: cfg.BulkApproveFloor,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}
}

// Enqueue stores a proposal unless the same source already has one
// pending in the same ID family (record-scoped link/create_user vs
// identity-scoped update_user/merge/split). Returns
// sqlite.ErrDuplicatePending when suppressed.
func (m *Manager) Enqueue(e *models.QueueEntry) (int64, error) {
	pending, err := m.db.HasPendingForSource(e.QueueType, e.SourceRef)
	if err != nil {
		return 0, fmt.Errorf("failed to check pending entries: %w", err)
	}
	if pending {
		return 0, sqlite.ErrDuplicatePending
	}

	e.Status = models.StatusPending
	id, err := m.db.InsertQueueEntry(e)
	if err != nil {
		return 0, fmt.Errorf("failed to insert queue entry: %w", err)
	}
	e.ID = id

	m.audit(id, "created", "", nil, "", "")
	m.publish(EventCreated, *e)

	return id, nil
}

// List returns entries matching the filter, newest first.
func (m *Manager) List(f models.QueueFilter) ([]models.QueueEntry, error) {
	return m.db.ListQueueEntries(f)
}

// Detail is a queue entry enriched with the referenced raw record,
// identities and audit trail, for the review UI.
type Detail struct {
	Entry          models.QueueEntry   `json:"entry"`
	Record         *models.RawRecord   `json:"record,omitempty"`
	SourceIdentity *models.Identity    `json:"source_identity,omitempty"`
	TargetIdentity *models.Identity    `json:"target_identity,omitempty"`
	Audit          []models.AuditEntry `json:"audit"`
}

func (m *Manager) GetDetail(id int64) (*Detail, error) {
	entry, err := m.db.GetQueueEntry(id)
	if err != nil {
		return nil, err
	}

	d := &Detail{Entry: *entry}

	switch entry.QueueType {
	case models.QueueLink, models.QueueCreateUser:
		if rec, err := m.db.GetRawRecord(entry.SourceRef); err == nil {
			d.Record = rec
		}
	default:
		if ident, err := m.db.GetIdentity(entry.SourceRef); err == nil {
			d.SourceIdentity = ident
		}
	}
	if entry.TargetRef != nil {
		if ident, err := m.db.GetIdentity(*entry.TargetRef); err == nil {
			d.TargetIdentity = ident
		}
	}

	audit, err := m.db.ListAuditByQueue(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}
	d.Audit = audit

	return d, nil
}

// Approve moves a pending entry to approved, optionally merging field
// modifications into the proposal, then applies it. A failed apply
// leaves the entry at approved with the error on the audit trail, so
// the proposal stays inspectable and retryable.
func (m *Manager) Approve(id int64, actorID string, mods *models.ProposedData) (*models.QueueEntry, error) {
	entry, err := m.db.GetQueueEntry(id)
	if err != nil {
		return nil, err
	}

	if err := m.transition(entry, models.StatusApproved, actorID); err != nil {
		return nil, err
	}

	// Modifications persist only once the entry is ours: merging before
	// the transition would let a losing reviewer rewrite the stored
	// proposal of an already-reviewed entry.
	if mods != nil {
		merged := mergeProposal(entry.Proposed, *mods)
		if err := m.db.UpdateQueueProposal(id, merged); err != nil {
			return nil, fmt.Errorf("failed to store modified proposal: %w", err)
		}
		entry.Proposed = merged
	}
	m.audit(id, "approved", actorID, mods, "", "")
	m.publish(EventApproved, *entry)

	result, applyErr := m.apply(entry)
	if applyErr != nil {
		m.audit(id, "apply_failed", actorID, nil, "", applyErr.Error())
		m.publish(EventFailed, *entry)
		logger.Error("Queue apply failed",
			zap.Int64("queue_id", id),
			zap.String("queue_type", string(entry.QueueType)),
			zap.Error(applyErr))
		return entry, fmt.Errorf("failed to apply %s proposal: %w", entry.QueueType, applyErr)
	}

	if err := m.transition(entry, models.StatusApplied, actorID); err != nil {
		return nil, err
	}
	m.audit(id, "applied", actorID, nil, result, "")
	m.publish(EventApplied, *entry)

	return entry, nil
}

// Reject moves a pending entry to rejected.
func (m *Manager) Reject(id int64, actorID, reason string) (*models.QueueEntry, error) {
	entry, err := m.db.GetQueueEntry(id)
	if err != nil {
		return nil, err
	}

	if err := m.transition(entry, models.StatusRejected, actorID); err != nil {
		return nil, err
	}
	m.audit(id, "rejected", actorID, nil, "", reason)
	m.publish(EventRejected, *entry)

	return entry, nil
}

// BulkResult is the per-entry outcome of a bulk approval.
type BulkResult struct {
	QueueID int64  `json:"queue_id"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

// BulkApprove applies every pending entry at or above minConfidence,
// never below the configured floor. One entry's failure does not stop
// the rest.
func (m *Manager) BulkApprove(actorID string, minConfidence float64, queueType models.QueueType) ([]BulkResult, error) {
	if minConfidence < m.bulkFloor {
		minConfidence = m.bulkFloor
	}

	// Page through the whole backlog up front; approving as we list
	// would shift the pending set under the pagination.
	const page = 200
	var entries []models.QueueEntry
	for offset := 0; ; offset += page {
		batch, err := m.db.ListQueueEntries(models.QueueFilter{
			Status:        models.StatusPending,
			QueueType:     queueType,
			MinConfidence: minConfidence,
			Limit:         page,
			Offset:        offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list pending entries: %w", err)
		}
		entries = append(entries, batch...)
		if len(batch) < page {
			break
		}
	}

	results := make([]BulkResult, 0, len(entries))
	for _, e := range entries {
		r := BulkResult{QueueID: e.ID}
		if _, err := m.Approve(e.ID, actorID, nil); err != nil {
			r.Error = err.Error()
		} else {
			r.Applied = true
		}
		results = append(results, r)
	}

	logger.Info("Bulk approval finished",
		zap.String("actor", actorID),
		zap.Float64("min_confidence", minConfidence),
		zap.Int("entries", len(results)))

	return results, nil
}

// Cleanup deletes rejected entries older than the retention window,
// with their audit rows.
func (m *Manager) Cleanup() (int64, error) {
	cutoff := time.Now().Add(-m.retention)
	deleted, err := m.db.DeleteRejectedBefore(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up rejected entries: %w", err)
	}

	if deleted > 0 {
		logger.Info("Queue retention cleanup", zap.Int64("deleted", deleted))
	}

	return deleted, nil
}

// transition is the single place a status ever changes. The UPDATE is
// conditional on the current status, so a concurrent reviewer loses
// cleanly with ErrStateConflict instead of double-applying.
func (m *Manager) transition(entry *models.QueueEntry, to models.QueueStatus, actorID string) error {
	if !canTransition(entry.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrStateConflict, entry.Status, to)
	}

	moved, err := m.db.TransitionQueueStatus(entry.ID, entry.Status, to, actorID)
	if err != nil {
		return fmt.Errorf("failed to transition queue entry: %w", err)
	}
	if !moved {
		return fmt.Errorf("%w: entry %d changed concurrently", ErrStateConflict, entry.ID)
	}

	entry.Status = to
	entry.ReviewedBy = actorID
	now := time.Now()
	entry.ReviewedAt = &now

	return nil
}

// apply dispatches the approved proposal to the matching transactional
// store operation and returns a short human-readable result.
func (m *Manager) apply(entry *models.QueueEntry) (string, error) {
	p := entry.Proposed

	switch entry.QueueType {
	case models.QueueLink:
		target, err := refTarget(entry)
		if err != nil {
			return "", err
		}
		if err := m.db.ApplyLink(entry.SourceRef, target); err != nil {
			return "", err
		}
		return fmt.Sprintf("record %d linked to identity %d", entry.SourceRef, target), nil

	case models.QueueCreateUser:
		ident := identityFromProposal(p)
		newID, err := m.db.ApplyCreateIdentity(ident, entry.SourceRef)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("identity %d created and linked to record %d", newID, entry.SourceRef), nil

	case models.QueueUpdateUser:
		if err := m.db.ApplyUpdateIdentity(entry.SourceRef, p); err != nil {
			return "", err
		}
		return fmt.Sprintf("identity %d updated", entry.SourceRef), nil

	case models.QueueMerge:
		target, err := refTarget(entry)
		if err != nil {
			return "", err
		}
		moved, err := m.db.ApplyMerge(entry.SourceRef, target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("identity %d merged into %d, %d records moved", entry.SourceRef, target, moved), nil

	case models.QueueSplit:
		if len(p.RecordIDs) == 0 {
			return "", errors.New("split proposal carries no record IDs")
		}
		ident := identityFromProposal(p)
		newID, err := m.db.ApplySplit(entry.SourceRef, ident, p.RecordIDs)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("identity %d split off from %d with %d records", newID, entry.SourceRef, len(p.RecordIDs)), nil

	default:
		return "", fmt.Errorf("unknown queue type %q", entry.QueueType)
	}
}

// refTarget resolves the identity a link or merge points at, from
// either the target reference or the proposal.
func refTarget(entry *models.QueueEntry) (int64, error) {
	if entry.TargetRef != nil {
		return *entry.TargetRef, nil
	}
	if entry.Proposed.IdentityID != nil {
		return *entry.Proposed.IdentityID, nil
	}
	return 0, errors.New("proposal names no target identity")
}

func identityFromProposal(p models.ProposedData) *models.Identity {
	return &models.Identity{
		Name:            p.Name,
		PrimaryEmail:    p.PrimaryEmail,
		SecondaryEmail:  p.SecondaryEmail,
		Code:            p.Code,
		Domain:          p.Domain,
		SecondaryDomain: p.SecondaryDomain,
		EntityIDs:       p.EntityIDs,
		Active:          true,
	}
}

// mergeProposal overlays reviewer modifications on the stored
// proposal; zero values leave the original field untouched.
func mergeProposal(base, mods models.ProposedData) models.ProposedData {
	if mods.IdentityID != nil {
		base.IdentityID = mods.IdentityID
	}
	if mods.Name != "" {
		base.Name = mods.Name
	}
	if mods.PrimaryEmail != "" {
		base.PrimaryEmail = mods.PrimaryEmail
	}
	if mods.SecondaryEmail != "" {
		base.SecondaryEmail = mods.SecondaryEmail
	}
	if mods.Code != "" {
		base.Code = mods.Code
	}
	if mods.Domain != "" {
		base.Domain = mods.Domain
	}
	if mods.SecondaryDomain != "" {
		base.SecondaryDomain = mods.SecondaryDomain
	}
	if len(mods.EntityIDs) > 0 {
		base.EntityIDs = mods.EntityIDs
	}
	if len(mods.RecordIDs) > 0 {
		base.RecordIDs = mods.RecordIDs
	}
	return base
}

func (m *Manager) audit(queueID int64, action, actorID string, mods *models.ProposedData, result, errMsg string) {
	err := m.db.InsertAudit(&models.AuditEntry{
		QueueID:       queueID,
		Action:        action,
		ActorID:       actorID,
		Timestamp:     time.Now(),
		Modifications: mods,
		ApplyResult:   result,
		ErrorMessage:  errMsg,
	})
	if err != nil {
		logger.Error("Failed to write audit entry",
			zap.Int64("queue_id", queueID), zap.String("action", action), zap.Error(err))
	}
}

func (m *Manager) publish(t EventType, entry models.QueueEntry) {
	metrics.QueueEntries.WithLabelValues(string(entry.QueueType), string(t)).Inc()

	switch t {
	case EventCreated:
		metrics.QueuePending.Inc()
	case EventApproved, EventRejected:
		metrics.QueuePending.Dec()
	}

	if m.broker != nil {
		m.broker.Publish(Event{Type: t, Entry: entry})
	}
}
