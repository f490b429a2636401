package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Registration is one recorded discovery.
type Registration struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	DeviceID   int       `json:"device_id"`
	Address    string    `json:"address"`
	Name       string    `json:"name,omitempty"`
	Resolution string    `json:"resolution"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which registrations to return.
type Filter struct {
	SessionID string // optional
	Address   string // optional
	DeviceID  *int   // optional
	Limit     int    // default 50, max 200
	Offset    int
}

// ListResult contains a page of registrations.
type ListResult struct {
	Registrations []Registration `json:"registrations"`
	Total         int            `json:"total"`
	Limit         int            `json:"limit"`
	Offset        int            `json:"offset"`
}

// Repository stores registrations.
type Repository interface {
	Create(ctx context.Context, reg *Registration) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores registrations in the registrations table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts reg. ID and CreatedAt are filled in if empty.
func (r *SQLiteRepository) Create(ctx context.Context, reg *Registration) error {
	if reg.ID == "" {
		reg.ID = "reg-" + uuid.NewString()[:8]
	}
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now()
	}
	reg.CreatedAt = reg.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registrations (id, session_id, device_id, address, name, resolution, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		reg.ID, reg.SessionID, reg.DeviceID, reg.Address,
		nullableString(reg.Name), reg.Resolution,
		reg.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting registration: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns registrations matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.Address != "" {
		conditions = append(conditions, "address = ?")
		args = append(args, filter.Address)
	}
	if filter.DeviceID != nil {
		conditions = append(conditions, "device_id = ?")
		args = append(args, *filter.DeviceID)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM registrations " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting registrations: %w", err)
	}

	query := "SELECT id, session_id, device_id, address, name, resolution, created_at FROM registrations " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying registrations: %w", err)
	}
	defer rows.Close()

	regs := []Registration{}
	for rows.Next() {
		var reg Registration
		var name sql.NullString
		var createdAt string
		if err := rows.Scan(&reg.ID, &reg.SessionID, &reg.DeviceID, &reg.Address, &name, &reg.Resolution, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning registration: %w", err)
		}
		reg.Name = name.String
		t, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing registration timestamp %q: %w", createdAt, err)
		}
		reg.CreatedAt = t
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating registrations: %w", err)
	}

	return &ListResult{
		Registrations: regs,
		Total:         total,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	}, nil
}
