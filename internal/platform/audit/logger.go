package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"alawein/internal/pkg/parser"
	"alawein/internal/platform/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	ActionAPIKeyCreate    = "api_key.create"
	ActionAPIKeyRename    = "api_key.rename"
	ActionAPIKeyRevoke    = "api_key.revoke"
	ActionAPIKeyDelete    = "api_key.delete"
	ActionOrgCreate       = "organization.create"
	ActionOrgUpdate       = "organization.update"
	ActionOrgDelete       = "organization.delete"
	ActionMemberRole      = "organization_member.update_role"
	ActionMemberRemove    = "organization_member.remove"
	ActionWaitlistStatus  = "waitlist.update_status"
	ActionCheckoutCreate  = "billing.checkout"
	ActionCustomerLinked  = "billing.customer_linked"
	ActionSubscriptionSet = "billing.subscription_updated"
)

// Logger writes audit entries in the background so request latency is not
// affected. Wait blocks until pending writes finish.
type Logger struct {
	db *sql.DB
	wg sync.WaitGroup
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db}
}

// Log records action by userID. r may be nil for events that do not come from a request.
func (l *Logger) Log(r *http.Request, userID, action, resourceType, resourceID string, metadata map[string]interface{}) {
	meta := make(map[string]interface{}, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}

	ip := "unknown"
	ua := "unknown"
	if r != nil {
		ip = clientIP(r)
		ua = r.UserAgent()
		meta["client"] = parser.ParseClient(r.Header.Get("X-Client-Info"), ua)
	}

	entry := &models.AuditLog{
		ID:           uuid.New().String(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     meta,
		IPAddress:    ip,
		UserAgent:    ua,
		CreatedAt:    time.Now().Unix(),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.insert(ctx, entry); err != nil {
			log.Error().Err(err).Str("action", action).Msg("Failed to write audit log")
		}
	}()
}

func (l *Logger) Wait() {
	l.wg.Wait()
}

func (l *Logger) insert(ctx context.Context, e *models.AuditLog) error {
	metaJSON, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.UserID, e.Action, e.ResourceType, e.ResourceID, string(metaJSON), e.IPAddress, e.UserAgent, e.CreatedAt)
	return err
}

// List returns the newest entries first. An empty userID lists every user.
func (l *Logger) List(ctx context.Context, userID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, user_id, action, resource_type, resource_id, metadata, ip_address, user_agent, created_at FROM audit_logs`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ` + strconv.Itoa(limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		var e models.AuditLog
		var metaStr string
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.ResourceType, &e.ResourceID, &metaStr, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaStr), &e.Metadata); err != nil {
			e.Metadata = map[string]interface{}{}
		}
		logs = append(logs, &e)
	}
	return logs, rows.Err()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
