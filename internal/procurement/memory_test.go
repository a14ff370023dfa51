package procurement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/procureflow/internal/audit"
	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

type memoryProcRepo struct {
	docs    map[uuid.UUID]Document
	lines   map[uuid.UUID][]Line
	deleted map[uuid.UUID]bool
	// onInsert runs before each document insert and may fail it.
	onInsert func(doc Document) error
	counts   int
}

type memoryProcTx struct {
	repo    *memoryProcRepo
	ops     []func(*memoryProcRepo)
	numbers map[string]bool
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{
		docs:    make(map[uuid.UUID]Document),
		lines:   make(map[uuid.UUID][]Line),
		deleted: make(map[uuid.UUID]bool),
	}
}

// WithTx buffers writes and applies them only when fn succeeds.
func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryProcTx{repo: r, numbers: make(map[string]bool)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, op := range tx.ops {
		op(r)
	}
	return nil
}

func (r *memoryProcRepo) CountCreated(ctx context.Context, docType workflow.DocType, from, to time.Time) (int, error) {
	r.counts++
	n := 0
	for _, doc := range r.docs {
		if doc.Type == docType && !doc.CreatedAt.Before(from) && doc.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r *memoryProcRepo) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	doc, ok := r.docs[id]
	if !ok || r.deleted[id] {
		return Document{}, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	doc.Lines = append([]Line(nil), r.lines[id]...)
	return doc, nil
}

func (r *memoryProcRepo) ListDocuments(ctx context.Context, filters ListFilters) ([]Document, int, error) {
	var out []Document
	for id, doc := range r.docs {
		if r.deleted[id] || doc.Type != filters.Type {
			continue
		}
		if filters.Status != "" && doc.Status != filters.Status {
			continue
		}
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	total := len(out)
	if filters.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filters.Offset:]
	if len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (r *memoryProcRepo) numberTaken(number string) bool {
	for _, doc := range r.docs {
		if doc.Number == number {
			return true
		}
	}
	return false
}

func (r *memoryProcRepo) countType(docType workflow.DocType) int {
	n := 0
	for id, doc := range r.docs {
		if doc.Type == docType && !r.deleted[id] {
			n++
		}
	}
	return n
}

func (t *memoryProcTx) InsertDocument(ctx context.Context, doc Document) error {
	if t.repo.onInsert != nil {
		if err := t.repo.onInsert(doc); err != nil {
			return err
		}
	}
	if t.repo.numberTaken(doc.Number) || t.numbers[doc.Number] {
		return fmt.Errorf("insert %s: %w", doc.Number, workflow.ErrUniqueViolation)
	}
	t.numbers[doc.Number] = true
	doc.Lines = nil
	t.ops = append(t.ops, func(r *memoryProcRepo) { r.docs[doc.ID] = doc })
	return nil
}

func (t *memoryProcTx) InsertLine(ctx context.Context, line Line) error {
	t.ops = append(t.ops, func(r *memoryProcRepo) { r.lines[line.DocumentID] = append(r.lines[line.DocumentID], line) })
	return nil
}

func (t *memoryProcTx) DeleteLines(ctx context.Context, documentID uuid.UUID) error {
	t.ops = append(t.ops, func(r *memoryProcRepo) { delete(r.lines, documentID) })
	return nil
}

func (t *memoryProcTx) LockDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	return t.repo.GetDocument(ctx, id)
}

func (t *memoryProcTx) UpdateDraft(ctx context.Context, doc Document) error {
	if _, err := t.repo.GetDocument(ctx, doc.ID); err != nil {
		return err
	}
	doc.Lines = nil
	t.ops = append(t.ops, func(r *memoryProcRepo) { r.docs[doc.ID] = doc })
	return nil
}

func (t *memoryProcTx) UpdateState(ctx context.Context, id uuid.UUID, st workflow.State, at time.Time) error {
	if _, err := t.repo.GetDocument(ctx, id); err != nil {
		return err
	}
	t.ops = append(t.ops, func(r *memoryProcRepo) {
		doc := r.docs[id].WithState(st)
		doc.UpdatedAt = at
		r.docs[id] = doc
	})
	return nil
}

func (t *memoryProcTx) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	t.ops = append(t.ops, func(r *memoryProcRepo) { r.deleted[id] = true })
	return nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []auditCall
}

type auditCall struct {
	action audit.Action
	entry  audit.Entry
}

func (a *memoryAudit) Log(ctx context.Context, action audit.Action, entry audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditCall{action: action, entry: entry})
}

func (a *memoryAudit) count(action audit.Action, recordID string) int {
	n := 0
	for _, c := range a.entries {
		if c.action == action && (recordID == "" || c.entry.RecordID == recordID) {
			n++
		}
	}
	return n
}

func (a *memoryAudit) last(action audit.Action, recordID string) audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.entries) - 1; i >= 0; i-- {
		if c := a.entries[i]; c.action == action && c.entry.RecordID == recordID {
			return c.entry
		}
	}
	return audit.Entry{}
}

type recordingEvents struct {
	events []TransitionEvent
}

func (r *recordingEvents) Dispatch(ctx context.Context, evt TransitionEvent) {
	r.events = append(r.events, evt)
}

type recordingMetrics struct {
	observed []string
}

func (m *recordingMetrics) ObserveTransition(docType, name, outcome string) {
	m.observed = append(m.observed, docType+"/"+name+"/"+outcome)
}

type capabilityGate struct{}

func (capabilityGate) Authorize(ctx context.Context, actor shared.Actor, capability shared.Capability) error {
	if !actor.Has(capability) {
		return fmt.Errorf("missing %s", capability)
	}
	return nil
}

type collisionCounter struct {
	n int
}

func (c *collisionCounter) NumberCollision(workflow.DocType) { c.n++ }

type fixture struct {
	repo       *memoryProcRepo
	audit      *memoryAudit
	events     *recordingEvents
	metrics    *recordingMetrics
	collisions *collisionCounter
	svc        *Service
	now        time.Time
}

func newFixture() *fixture {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	repo := newMemoryProcRepo()
	f := &fixture{
		repo:       repo,
		audit:      &memoryAudit{},
		events:     &recordingEvents{},
		metrics:    &recordingMetrics{},
		collisions: &collisionCounter{},
		now:        now,
	}
	machine := workflow.NewMachine(capabilityGate{}, nil)
	creator := workflow.NewCreator(workflow.NewNumberGenerator(repo, clock), workflow.DefaultMaxAttempts, nil, f.collisions)
	f.svc = NewService(repo, machine, creator, f.audit, f.events, nil).WithMetrics(f.metrics)
	f.svc.now = clock
	return f
}

func fullActor(id int64, name string) shared.Actor {
	return shared.NewActor(id, name, shared.ProcurementScopes("IOM", "PO", "PR", "CR")...)
}
