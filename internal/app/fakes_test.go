package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"billing_cycle_bot/internal/domain/calendar"
	"billing_cycle_bot/internal/domain/cycle"
	"billing_cycle_bot/internal/domain/project"
	"billing_cycle_bot/internal/domain/reminder"
	"billing_cycle_bot/internal/domain/settings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var (
	testToday = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	testNow   = testToday.Add(9 * time.Hour)
)

func day(offset int) time.Time { return testToday.AddDate(0, 0, offset) }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nullLogger() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

type fakeSettingsRepo struct {
	cfg       *settings.Config
	getErr    error
	createErr error
	updateErr error
	created   int
	updated   int
}

func (r *fakeSettingsRepo) Get(ctx context.Context) (*settings.Config, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.cfg == nil {
		return nil, settings.ErrSettingsNotFound
	}
	return r.cfg.Clone(), nil
}

func (r *fakeSettingsRepo) Create(ctx context.Context, cfg *settings.Config) error {
	if r.createErr != nil {
		return r.createErr
	}
	if r.cfg != nil {
		return settings.ErrSettingsAlreadyExist
	}
	r.created++
	r.cfg = cfg.Clone()
	return nil
}

func (r *fakeSettingsRepo) Update(ctx context.Context, cfg *settings.Config) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.cfg == nil {
		return settings.ErrSettingsNotFound
	}
	r.updated++
	r.cfg = cfg.Clone()
	return nil
}

type fakeProjectRepo struct {
	projects map[int64]*project.Project
	getErr   error
}

func newFakeProjectRepo(projects ...*project.Project) *fakeProjectRepo {
	r := &fakeProjectRepo{projects: map[int64]*project.Project{}}
	for _, p := range projects {
		r.projects[p.ID] = p
	}
	return r
}

func (r *fakeProjectRepo) GetByID(ctx context.Context, id int64) (*project.Project, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.projects[id]
	if !ok {
		return nil, project.ErrProjectNotFound
	}
	return p, nil
}

func (r *fakeProjectRepo) ListActiveIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id, p := range r.projects {
		if p.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *fakeProjectRepo) ListMembers(ctx context.Context, projectID int64) ([]*project.Member, error) {
	p, err := r.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return p.Members, nil
}

// memCycleRepo enforces the (project_id, due_date) uniqueness like the real store.
type memCycleRepo struct {
	mu        sync.Mutex
	nextID    int64
	cycles    map[int64]*cycle.Cycle
	createErr func(c *cycle.Cycle) error
	updateErr func(c *cycle.Cycle) error
}

func newMemCycleRepo(cycles ...*cycle.Cycle) *memCycleRepo {
	r := &memCycleRepo{cycles: map[int64]*cycle.Cycle{}}
	for _, c := range cycles {
		r.nextID++
		if c.ID == 0 {
			c.ID = r.nextID
		}
		r.cycles[c.ID] = c
	}
	return r
}

func (r *memCycleRepo) clash(c *cycle.Cycle) bool {
	for _, other := range r.cycles {
		if other.ID != c.ID && other.ProjectID == c.ProjectID && other.DueDate.Equal(c.DueDate) {
			return true
		}
	}
	return false
}

func (r *memCycleRepo) Create(ctx context.Context, c *cycle.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		if err := r.createErr(c); err != nil {
			return err
		}
	}
	if r.clash(c) {
		return cycle.ErrDuplicateDueDate
	}
	r.nextID++
	c.ID = r.nextID
	stored := *c
	r.cycles[c.ID] = &stored
	return nil
}

func (r *memCycleRepo) GetByID(ctx context.Context, id int64) (*cycle.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cycles[id]
	if !ok {
		return nil, cycle.ErrCycleNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCycleRepo) ListByProject(ctx context.Context, projectID int64, includeArchived bool) ([]*cycle.Cycle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*cycle.Cycle
	for _, c := range r.cycles {
		if c.ProjectID != projectID || (c.Archived && !includeArchived) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (r *memCycleRepo) Latest(ctx context.Context, projectID int64) (*cycle.Cycle, error) {
	all, _ := r.ListByProject(ctx, projectID, true)
	if len(all) == 0 {
		return nil, cycle.ErrCycleNotFound
	}
	return all[len(all)-1], nil
}

func (r *memCycleRepo) ListDueDatesFrom(ctx context.Context, projectID int64, from time.Time) ([]time.Time, error) {
	all, _ := r.ListByProject(ctx, projectID, true)
	var dates []time.Time
	for _, c := range all {
		if !c.DueDate.Before(calendar.Day(from)) {
			dates = append(dates, c.DueDate)
		}
	}
	return dates, nil
}

func (r *memCycleRepo) save(c *cycle.Cycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cycles[c.ID]; !ok {
		return cycle.ErrCycleNotFound
	}
	if r.updateErr != nil {
		if err := r.updateErr(c); err != nil {
			return err
		}
	}
	if r.clash(c) {
		return cycle.ErrDuplicateDueDate
	}
	cp := *c
	r.cycles[c.ID] = &cp
	return nil
}

func (r *memCycleRepo) UpdateArchiveState(ctx context.Context, c *cycle.Cycle) error {
	return r.save(c)
}

func (r *memCycleRepo) UpdateAdjustment(ctx context.Context, c *cycle.Cycle) error {
	return r.save(c)
}

func (r *memCycleRepo) count(projectID int64) int {
	all, _ := r.ListByProject(context.Background(), projectID, true)
	return len(all)
}

type logKey struct {
	cycleID  int64
	tier     reminder.Tier
	memberID int64
	sentOn   time.Time
}

// memReminderLogs dedups on (cycle, tier, member, day) like the reminder_logs table.
type memReminderLogs struct {
	mu        sync.Mutex
	nextID    int64
	logs      map[int64]*reminder.Log
	keys      map[logKey]int64
	recordErr error
	deleted   []int64
}

func newMemReminderLogs(existing ...*reminder.Log) *memReminderLogs {
	r := &memReminderLogs{logs: map[int64]*reminder.Log{}, keys: map[logKey]int64{}}
	for _, l := range existing {
		_, _ = r.Record(context.Background(), l)
	}
	return r
}

func (r *memReminderLogs) Record(ctx context.Context, l *reminder.Log) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return false, r.recordErr
	}
	k := logKey{l.CycleID, l.Tier, l.MemberID, calendar.Day(l.SentOn)}
	if _, ok := r.keys[k]; ok {
		return false, nil
	}
	r.nextID++
	l.ID = r.nextID
	cp := *l
	r.logs[l.ID] = &cp
	r.keys[k] = l.ID
	return true, nil
}

func (r *memReminderLogs) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return nil
	}
	delete(r.keys, logKey{l.CycleID, l.Tier, l.MemberID, calendar.Day(l.SentOn)})
	delete(r.logs, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *memReminderLogs) ListByProject(ctx context.Context, projectID int64, since time.Time) ([]*reminder.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*reminder.Log
	for _, l := range r.logs {
		if l.ProjectID == projectID && !l.SentOn.Before(since) {
			out = append(out, l)
		}
	}
	return out, nil
}

type scheduled struct {
	projectID int64
	cycleID   int64
	at        time.Time
}

type fakeDispatcher struct {
	mu          sync.Mutex
	tasks       []*reminder.Task
	scheduled   []scheduled
	enqueueErr  error
	scheduleErr error

	// failFor makes the next n enqueues for a member fail.
	failFor map[int64]int
}

func (d *fakeDispatcher) Enqueue(ctx context.Context, t *reminder.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enqueueErr != nil {
		return d.enqueueErr
	}
	if d.failFor[t.MemberID] > 0 {
		d.failFor[t.MemberID]--
		return errors.New("queue rejected task")
	}
	d.tasks = append(d.tasks, t)
	return nil
}

func (d *fakeDispatcher) Schedule(ctx context.Context, projectID, cycleID int64, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scheduleErr != nil {
		return d.scheduleErr
	}
	d.scheduled = append(d.scheduled, scheduled{projectID, cycleID, at})
	return nil
}

type countingMetrics struct {
	mu        sync.Mutex
	generated int
	archived  int
	sent      map[reminder.Tier]int
	dedup     int
	failures  map[Operation]int
	passes    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{sent: map[reminder.Tier]int{}, failures: map[Operation]int{}}
}

func (m *countingMetrics) CycleGenerated(project.Frequency) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated++
}

func (m *countingMetrics) CycleArchived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived++
}

func (m *countingMetrics) ReminderDispatched(t reminder.Tier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[t]++
}

func (m *countingMetrics) ReminderDeduplicated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dedup++
}

func (m *countingMetrics) Failure(op Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op]++
}

func (m *countingMetrics) ObservePass(Operation, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passes++
}

func testProject(id int64) *project.Project {
	return &project.Project{
		ID:          id,
		Name:        "Streaming",
		Cost:        money("30.00"),
		Currency:    "EUR",
		Frequency:   project.FrequencyMonthly,
		RenewalDate: day(7),
		IsActive:    true,
		Members: []*project.Member{
			{ID: 1, ProjectID: id, Name: "Ana", ChatID: 101},
			{ID: 2, ProjectID: id, Name: "Ben", ChatID: 102},
		},
	}
}

type harness struct {
	settings   *fakeSettingsRepo
	projects   *fakeProjectRepo
	cycles     *memCycleRepo
	logs       *memReminderLogs
	dispatcher *fakeDispatcher
	metrics    *countingMetrics
	manager    *Manager
}

func newHarness(projects ...*project.Project) *harness {
	h := &harness{
		settings:   &fakeSettingsRepo{cfg: settings.Default()},
		projects:   newFakeProjectRepo(projects...),
		cycles:     newMemCycleRepo(),
		logs:       newMemReminderLogs(),
		dispatcher: &fakeDispatcher{},
		metrics:    newCountingMetrics(),
	}
	h.manager = NewManager(h.settings, h.projects, h.cycles, h.logs, h.dispatcher, h.metrics, nullLogger(), time.UTC)
	h.manager.now = func() time.Time { return testNow }
	return h
}

func (h *harness) addCycle(c *cycle.Cycle) *cycle.Cycle {
	if err := h.cycles.Create(context.Background(), c); err != nil {
		panic(err)
	}
	return c
}
