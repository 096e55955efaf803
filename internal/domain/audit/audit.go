package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	ActionAdvanceRequested   = "advance.requested"
	ActionAdvanceTransition  = "advance.transition"
	ActionCompanyRegistered  = "company.registered"
	ActionCompanyApproval    = "company.approval"
	ActionEmployeeCreated    = "employee.created"
	ActionEmployeeApproval   = "employee.approval"
	ActionEmployeeActivation = "employee.activation"
	ActionKYCSubmitted       = "employee.kyc_submitted"
	ActionPaymentInfo        = "employee.payment_info"
	ActionPasswordChanged    = "user.password_changed"
	ActionRatePublished      = "exchange_rate.published"
)

// Entry is one row in the audit trail. Before/After are marshalled to JSON.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	IP         string
	Before     any
	After      any
}

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// Filter narrows the trail. Zero fields match everything; From is inclusive
// and Until exclusive.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorUser  string
	From       time.Time
	Until      time.Time
}

type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func marshalOptional(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	beforeJSON, err := marshalOptional(e.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalOptional(e.After)
	if err != nil {
		return err
	}

	_, err = s.DB.Exec(ctx, `
    INSERT INTO audit_events (actor_user_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES (NULLIF($1,'')::uuid,$2,$3,$4,$5,$6,$7,$8)
  `, e.ActorID, e.Action, e.EntityType, e.EntityID, beforeJSON, afterJSON, e.RequestID, e.IP)
	return err
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildBaseQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Service) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	selectCols := "id, COALESCE(actor_user_id::text, ''), action, entity_type, entity_id, request_id, ip, created_at"
	if includeDetails {
		selectCols += ", before_json, after_json"
	}
	query, args := buildBaseQuery("SELECT "+selectCols, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &evt.Before, &evt.After)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

type conditions struct {
	clauses []string
	args    []any
}

func (c *conditions) add(clause string, value any) {
	c.args = append(c.args, value)
	c.clauses = append(c.clauses, fmt.Sprintf(clause, len(c.args)))
}

func buildBaseQuery(prefix string, filter Filter) (string, []any) {
	var c conditions
	if filter.Action != "" {
		c.add("action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		c.add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != "" {
		c.add("entity_id = $%d", filter.EntityID)
	}
	if filter.ActorUser != "" {
		c.add("actor_user_id::text = $%d", filter.ActorUser)
	}
	if !filter.From.IsZero() {
		c.add("created_at >= $%d", filter.From)
	}
	if !filter.Until.IsZero() {
		c.add("created_at < $%d", filter.Until)
	}
	query := prefix + " FROM audit_events"
	if len(c.clauses) > 0 {
		query += " WHERE " + strings.Join(c.clauses, " AND ")
	}
	return query, c.args
}
