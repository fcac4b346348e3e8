package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billing_cycle_bot/internal/domain/cycle"
)

const cycleColumns = `id, project_id, due_date, total_amount, archived, archived_at, archive_reason,
	original_amount, original_due_date, adjustment_reason, adjusted_at, created_at, updated_at`

const paymentColumns = `p.id, p.cycle_id, p.member_id, p.amount, p.status, p.evidence_ref, p.created_at`

type CycleRepository struct {
	db *DB
}

func NewCycleRepository(db *DB) *CycleRepository {
	return &CycleRepository{db: db}
}

func (r *CycleRepository) Create(ctx context.Context, c *cycle.Cycle) error {
	now := time.Now().UTC()
	query := `INSERT INTO billing_cycles (project_id, due_date, total_amount, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.db.queryRow(ctx, query, c.ProjectID, dateParam(c.DueDate), c.TotalAmount, false, now, now).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return cycle.ErrDuplicateDueDate
		}
		return fmt.Errorf("error creating billing cycle: %w", err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

func (r *CycleRepository) GetByID(ctx context.Context, id int64) (*cycle.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM billing_cycles WHERE id = ?`
	rows, err := r.db.query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("error getting billing cycle by ID: %w", err)
	}
	cycles, err := collectCycles(rows)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, cycle.ErrCycleNotFound
	}

	payments, err := r.loadPayments(ctx, `WHERE p.cycle_id = ?`, id)
	if err != nil {
		return nil, err
	}
	attachPayments(cycles, payments)
	return cycles[0], nil
}

func (r *CycleRepository) ListByProject(ctx context.Context, projectID int64, includeArchived bool) ([]*cycle.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM billing_cycles WHERE project_id = ?`
	args := []interface{}{projectID}
	if !includeArchived {
		query += ` AND archived = ?`
		args = append(args, false)
	}
	query += ` ORDER BY due_date`

	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing billing cycles: %w", err)
	}
	cycles, err := collectCycles(rows)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return cycles, nil
	}

	payments, err := r.loadPayments(ctx, `JOIN billing_cycles c ON c.id = p.cycle_id WHERE c.project_id = ?`, projectID)
	if err != nil {
		return nil, err
	}
	attachPayments(cycles, payments)
	return cycles, nil
}

// Latest returns the cycle with the greatest due date, archived ones included.
// Its payments are not loaded.
func (r *CycleRepository) Latest(ctx context.Context, projectID int64) (*cycle.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM billing_cycles WHERE project_id = ? ORDER BY due_date DESC LIMIT 1`
	rows, err := r.db.query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("error getting latest billing cycle: %w", err)
	}
	cycles, err := collectCycles(rows)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, cycle.ErrCycleNotFound
	}
	return cycles[0], nil
}

func (r *CycleRepository) ListDueDatesFrom(ctx context.Context, projectID int64, from time.Time) ([]time.Time, error) {
	rows, err := r.db.query(ctx, `SELECT due_date FROM billing_cycles WHERE project_id = ? AND due_date >= ? ORDER BY due_date`,
		projectID, dateParam(from))
	if err != nil {
		return nil, fmt.Errorf("error listing due dates: %w", err)
	}
	defer rows.Close()

	dates := make([]time.Time, 0)
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(scanDate(&d)); err != nil {
			return nil, fmt.Errorf("error scanning due date: %w", err)
		}
		dates = append(dates, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due dates: %w", err)
	}
	return dates, nil
}

func (r *CycleRepository) UpdateArchiveState(ctx context.Context, c *cycle.Cycle) error {
	now := time.Now().UTC()
	query := `UPDATE billing_cycles SET archived = ?, archived_at = ?, archive_reason = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.exec(ctx, query, c.Archived, c.ArchivedAt, c.ArchiveReason, now, c.ID)
	if err != nil {
		return fmt.Errorf("error updating archive state: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

func (r *CycleRepository) UpdateAdjustment(ctx context.Context, c *cycle.Cycle) error {
	now := time.Now().UTC()
	query := `UPDATE billing_cycles SET due_date = ?, total_amount = ?, original_amount = ?, original_due_date = ?,
		adjustment_reason = ?, adjusted_at = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.exec(ctx, query, dateParam(c.DueDate), c.TotalAmount, c.OriginalAmount,
		nullDateParam(c.OriginalDueDate), c.AdjustmentReason, c.AdjustedAt, now, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return cycle.ErrDuplicateDueDate
		}
		return fmt.Errorf("error updating cycle adjustment: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

// AddPayment records a member's payment against a cycle.
func (r *CycleRepository) AddPayment(ctx context.Context, p *cycle.Payment) error {
	now := time.Now().UTC()
	var evidence sql.NullString
	if p.EvidenceRef != "" {
		evidence = sql.NullString{String: p.EvidenceRef, Valid: true}
	}
	query := `INSERT INTO payments (cycle_id, member_id, amount, status, evidence_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.db.queryRow(ctx, query, p.CycleID, p.MemberID, p.Amount, string(p.Status), evidence, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("error creating payment: %w", err)
	}
	p.CreatedAt = now
	return nil
}

func (r *CycleRepository) loadPayments(ctx context.Context, where string, args ...interface{}) ([]*cycle.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p ` + where + ` ORDER BY p.id`
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*cycle.Payment, 0)
	for rows.Next() {
		p := &cycle.Payment{}
		var (
			status   string
			evidence sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.CycleID, &p.MemberID, &p.Amount, &status, &evidence, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning payment: %w", err)
		}
		p.Status = cycle.PaymentStatus(status)
		p.EvidenceRef = evidence.String
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}
	return payments, nil
}

// collectCycles scans and closes rows.
func collectCycles(rows *sql.Rows) ([]*cycle.Cycle, error) {
	defer rows.Close()

	cycles := make([]*cycle.Cycle, 0)
	for rows.Next() {
		c := &cycle.Cycle{}
		err := rows.Scan(&c.ID, &c.ProjectID, scanDate(&c.DueDate), &c.TotalAmount,
			&c.Archived, &c.ArchivedAt, &c.ArchiveReason,
			&c.OriginalAmount, scanNullDate(&c.OriginalDueDate), &c.AdjustmentReason, &c.AdjustedAt,
			&c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning billing cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating billing cycles: %w", err)
	}
	return cycles, nil
}

func attachPayments(cycles []*cycle.Cycle, payments []*cycle.Payment) {
	byID := make(map[int64]*cycle.Cycle, len(cycles))
	for _, c := range cycles {
		byID[c.ID] = c
	}
	for _, p := range payments {
		if c, ok := byID[p.CycleID]; ok {
			c.Payments = append(c.Payments, p)
		}
	}
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking affected rows: %w", err)
	}
	if n == 0 {
		return cycle.ErrCycleNotFound
	}
	return nil
}

var _ cycle.Repository = (*CycleRepository)(nil)
