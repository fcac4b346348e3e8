package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"billing_cycle_bot/internal/domain/reminder"
)

// ReminderLogRepository stores which reminders went out. The daily uniqueness of
// (cycle, tier, member, day) is what keeps concurrent passes from double-sending.
type ReminderLogRepository struct {
	db *DB
}

func NewReminderLogRepository(db *DB) *ReminderLogRepository {
	return &ReminderLogRepository{db: db}
}

// Record inserts l unless an identical reminder was logged that day.
func (r *ReminderLogRepository) Record(ctx context.Context, l *reminder.Log) (bool, error) {
	now := time.Now().UTC()
	query := `INSERT INTO reminder_logs (project_id, cycle_id, tier, member_id, sent_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cycle_id, tier, member_id, sent_on) DO NOTHING
		RETURNING id`
	err := r.db.queryRow(ctx, query, l.ProjectID, l.CycleID, string(l.Tier), l.MemberID, dateParam(l.SentOn), now).Scan(&l.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error recording reminder: %w", err)
	}
	l.CreatedAt = now
	return true, nil
}

func (r *ReminderLogRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.exec(ctx, `DELETE FROM reminder_logs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error deleting reminder log: %w", err)
	}
	return nil
}

func (r *ReminderLogRepository) ListByProject(ctx context.Context, projectID int64, since time.Time) ([]*reminder.Log, error) {
	query := `SELECT id, project_id, cycle_id, tier, member_id, sent_on, created_at
		FROM reminder_logs WHERE project_id = ? AND sent_on >= ? ORDER BY sent_on, id`
	rows, err := r.db.query(ctx, query, projectID, dateParam(since))
	if err != nil {
		return nil, fmt.Errorf("error listing reminder logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*reminder.Log, 0)
	for rows.Next() {
		l := &reminder.Log{}
		var tier string
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.CycleID, &tier, &l.MemberID, scanDate(&l.SentOn), &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning reminder log: %w", err)
		}
		l.Tier = reminder.Tier(tier)
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminder logs: %w", err)
	}
	return logs, nil
}

// ListForCycle returns a cycle's reminder history, newest first.
func (r *ReminderLogRepository) ListForCycle(ctx context.Context, cycleID int64) ([]*reminder.Log, error) {
	query := `SELECT id, project_id, cycle_id, tier, member_id, sent_on, created_at
		FROM reminder_logs WHERE cycle_id = ? ORDER BY sent_on DESC, id DESC`
	rows, err := r.db.query(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("error listing cycle reminder logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*reminder.Log, 0)
	for rows.Next() {
		l := &reminder.Log{}
		var tier string
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.CycleID, &tier, &l.MemberID, scanDate(&l.SentOn), &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning reminder log: %w", err)
		}
		l.Tier = reminder.Tier(tier)
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycle reminder logs: %w", err)
	}
	return logs, nil
}
