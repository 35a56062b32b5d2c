package models

type Profile struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	DisplayName       string `json:"display_name"`
	BillingCustomerID string `json:"billing_customer_id,omitempty"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

type Organization struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type Membership struct {
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Role           Role   `json:"role"`
	CreatedAt      int64  `json:"created_at"`
}

type AuditLog struct {
	ID           string                 `json:"id"`
	UserID       string                 `json:"user_id"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata"`
	IPAddress    string                 `json:"ip_address"`
	UserAgent    string                 `json:"user_agent"`
	CreatedAt    int64                  `json:"created_at"`
}

type ScanFinding struct {
	Severity string `json:"severity"`
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	Line     int    `json:"line,omitempty"`
}

type Findings struct {
	Total    int           `json:"total"`
	Critical int           `json:"critical"`
	Warnings int           `json:"warnings"`
	Info     int           `json:"info"`
	Details  []ScanFinding `json:"details"`
}

type ScanResult struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id,omitempty"`
	Target    string   `json:"target"`
	Findings  Findings `json:"findings"`
	CreatedAt int64    `json:"created_at"`
}

type ResearchResult struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id,omitempty"`
	Topic      string   `json:"topic"`
	Summary    string   `json:"summary"`
	Insights   []string `json:"insights"`
	Confidence float64  `json:"confidence"`
	CreatedAt  int64    `json:"created_at"`
}
