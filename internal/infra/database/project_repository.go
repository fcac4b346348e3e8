package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"billing_cycle_bot/internal/domain/project"
)

var ErrDuplicateMember = fmt.Errorf("user is already a member of this project")

const projectColumns = `id, owner_id, name, cost, currency, frequency, renewal_date, is_active,
	reminder_days_before, reminder_max_level, created_at, updated_at`

const memberColumns = `id, project_id, user_id, name, chat_id, unsubscribed, created_at`

// ProjectRepository reads projects for the lifecycle and offers the few writes the
// admin CLI needs to register projects and members.
type ProjectRepository struct {
	db *DB
}

func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *project.Project) error {
	now := time.Now().UTC()
	var daysBefore, maxLevel sql.NullInt64
	if o := p.ReminderOverride; o != nil {
		if o.DaysBefore >= 0 {
			daysBefore = sql.NullInt64{Int64: int64(o.DaysBefore), Valid: true}
		}
		if o.MaxLevel > 0 {
			maxLevel = sql.NullInt64{Int64: int64(o.MaxLevel), Valid: true}
		}
	}

	query := `INSERT INTO projects (owner_id, name, cost, currency, frequency, renewal_date, is_active,
		reminder_days_before, reminder_max_level, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.db.queryRow(ctx, query, p.OwnerID, p.Name, p.Cost, p.Currency, string(p.Frequency),
		dateParam(p.RenewalDate), p.IsActive, daysBefore, maxLevel, now, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("error creating project: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (r *ProjectRepository) AddMember(ctx context.Context, m *project.Member) error {
	now := time.Now().UTC()
	query := `INSERT INTO project_members (project_id, user_id, name, chat_id, unsubscribed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`
	err := r.db.queryRow(ctx, query, m.ProjectID, m.UserID, m.Name, m.ChatID, m.Unsubscribed, now).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMember
		}
		return fmt.Errorf("error adding project member: %w", err)
	}
	m.CreatedAt = now
	return nil
}

// SetUnsubscribed records a member's reminder preference for a project.
func (r *ProjectRepository) SetUnsubscribed(ctx context.Context, memberID int64, unsubscribed bool) error {
	res, err := r.db.exec(ctx, `UPDATE project_members SET unsubscribed = ? WHERE id = ?`, unsubscribed, memberID)
	if err != nil {
		return fmt.Errorf("error updating member preference: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return project.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*project.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	p, err := scanProject(r.db.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, project.ErrProjectNotFound
		}
		return nil, fmt.Errorf("error getting project by ID: %w", err)
	}

	p.Members, err = r.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProjectRepository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.query(ctx, `SELECT id FROM projects WHERE is_active = ? ORDER BY id`, true)
	if err != nil {
		return nil, fmt.Errorf("error listing active projects: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning active project: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active projects: %w", err)
	}
	return ids, nil
}

func (r *ProjectRepository) ListMembers(ctx context.Context, projectID int64) ([]*project.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM project_members WHERE project_id = ? ORDER BY id`
	rows, err := r.db.query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("error listing project members: %w", err)
	}
	defer rows.Close()

	members := make([]*project.Member, 0)
	for rows.Next() {
		m := &project.Member{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.Name, &m.ChatID, &m.Unsubscribed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning project member: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project members: %w", err)
	}
	return members, nil
}

func scanProject(row *sql.Row) (*project.Project, error) {
	p := &project.Project{}
	var (
		frequency            string
		daysBefore, maxLevel sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Cost, &p.Currency, &frequency, scanDate(&p.RenewalDate),
		&p.IsActive, &daysBefore, &maxLevel, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	// Unknown frequencies are kept as-is; generation skips them.
	p.Frequency = project.Frequency(frequency)
	if daysBefore.Valid || maxLevel.Valid {
		p.ReminderOverride = &project.ReminderOverride{DaysBefore: -1, MaxLevel: int(maxLevel.Int64)}
		if daysBefore.Valid {
			p.ReminderOverride.DaysBefore = int(daysBefore.Int64)
		}
	}
	return p, nil
}
