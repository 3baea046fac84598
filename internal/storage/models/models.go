package models

import "time"

type ExtractionStatus string

const (
	ExtractionUnprocessed   ExtractionStatus = "unprocessed"
	ExtractionHigh          ExtractionStatus = "extracted_high"
	ExtractionMedium        ExtractionStatus = "extracted_medium"
	ExtractionLow           ExtractionStatus = "extracted_low"
	ExtractionReviewed      ExtractionStatus = "reviewed"
	ExtractionNotApplicable ExtractionStatus = "not_applicable"
)

type QueueType string

const (
	QueueLink       QueueType = "link"
	QueueCreateUser QueueType = "create_user"
	QueueUpdateUser QueueType = "update_user"
	QueueMerge      QueueType = "merge"
	QueueSplit      QueueType = "split"
)

type QueueStatus string

const (
	StatusPending  QueueStatus = "pending"
	StatusApproved QueueStatus = "approved"
	StatusRejected QueueStatus = "rejected"
	StatusApplied  QueueStatus = "applied"
)

// ExtractionResult is the structured person data derived from a raw
// recipient string. Empty string means "not extracted" for text fields.
type ExtractionResult struct {
	Name1        string           `json:"name1"`
	Name2        string           `json:"name2"`
	Genre        string           `json:"genre,omitempty"`
	Email        string           `json:"email"`
	Domain       string           `json:"domain"`
	IsPersonal   bool             `json:"is_personal"`
	Confidence   float64          `json:"confidence"`
	Status       ExtractionStatus `json:"extraction_status"`
	Name1Initial string           `json:"name1_initial,omitempty"`
	Name2Initial string           `json:"name2_initial,omitempty"`
	RoleLabel    string           `json:"role_label,omitempty"`
	Reasoning    string           `json:"reasoning,omitempty"`
}

// RawRecord is an immutable historical recipient string plus the
// extraction annotation written back by the pipeline.
type RawRecord struct {
	ID              int64            `json:"id"`
	RawInput        string           `json:"raw_input"`
	ContextIDs      []string         `json:"context_ids,omitempty"`
	IdentityID      *int64           `json:"identity_id,omitempty"`
	Extraction      ExtractionResult `json:"extraction"`
	PipelineVersion int              `json:"pipeline_version"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Identity is a canonical person or entity in the identity store.
type Identity struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	PrimaryEmail    string    `json:"primary_email"`
	SecondaryEmail  string    `json:"secondary_email,omitempty"`
	Code            string    `json:"code,omitempty"`
	Domain          string    `json:"domain,omitempty"`
	SecondaryDomain string    `json:"secondary_domain,omitempty"`
	EntityIDs       []string  `json:"entity_ids,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type DomainConvention string

const (
	ConventionFirstLast DomainConvention = "first.last"
	ConventionFLast     DomainConvention = "f.last"
	ConventionFlast     DomainConvention = "flast"
	ConventionFirst     DomainConvention = "first"
	ConventionLastFirst DomainConvention = "last.first"
	ConventionUnknown   DomainConvention = "unknown"
)

// DomainPattern is the inferred email naming convention for a domain.
type DomainPattern struct {
	Domain      string           `json:"domain"`
	Convention  DomainConvention `json:"convention"`
	Confidence  float64          `json:"confidence"`
	SampleSize  int              `json:"sample_size"`
	IsShared    bool             `json:"is_shared"`
	CompanyName string           `json:"company_name,omitempty"`
	EntityIDs   []string         `json:"entity_ids,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ProposedData carries the type-specific payload of a queue entry.
// Which fields are set depends on the queue type.
type ProposedData struct {
	IdentityID      *int64   `json:"identity_id,omitempty"`
	Name            string   `json:"name,omitempty"`
	PrimaryEmail    string   `json:"primary_email,omitempty"`
	SecondaryEmail  string   `json:"secondary_email,omitempty"`
	Code            string   `json:"code,omitempty"`
	Domain          string   `json:"domain,omitempty"`
	SecondaryDomain string   `json:"secondary_domain,omitempty"`
	EntityIDs       []string `json:"entity_ids,omitempty"`
	RecordIDs       []int64  `json:"record_ids,omitempty"`
}

// QueueEntry is a durable proposal awaiting human review.
// SourceRef is a raw record ID for link/create_user and an identity ID
// for update_user/merge/split; TargetRef is set for link and merge.
type QueueEntry struct {
	ID         int64         `json:"id"`
	QueueType  QueueType     `json:"queue_type"`
	SourceRef  int64         `json:"source_ref"`
	TargetRef  *int64        `json:"target_ref,omitempty"`
	Proposed   ProposedData  `json:"proposed_data"`
	Current    *ProposedData `json:"current_data,omitempty"`
	Confidence float64       `json:"confidence"`
	Reasoning  string        `json:"reasoning,omitempty"`
	Status     QueueStatus   `json:"status"`
	ReviewedBy string        `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AuditEntry records one queue state transition, including failed
// apply attempts. Append-only.
type AuditEntry struct {
	ID            int64         `json:"id"`
	QueueID       int64         `json:"queue_id"`
	Action        string        `json:"action"`
	ActorID       string        `json:"actor_id,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	Modifications *ProposedData `json:"modifications,omitempty"`
	ApplyResult   string        `json:"apply_result,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// QueueFilter narrows queue listings.
type QueueFilter struct {
	Status        QueueStatus
	QueueType     QueueType
	MinConfidence float64
	Domain        string
	Limit         int
	Offset        int
}

// DashboardSummary aggregates queue and extraction counts for the UI.
type DashboardSummary struct {
	QueueByStatus      map[string]int `json:"queue_by_status"`
	QueueByType        map[string]int `json:"queue_by_type"`
	ExtractionByStatus map[string]int `json:"extraction_by_status"`
	Identities         int            `json:"identities"`
	RawRecords         int            `json:"raw_records"`
	GeneratedAt        time.Time      `json:"generated_at"`
}
