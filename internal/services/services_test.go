package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"workflow-registry/backend/internal/apperr"
	"workflow-registry/backend/internal/auth"
	"workflow-registry/backend/internal/logging"
	"workflow-registry/backend/internal/repository"
	"workflow-registry/backend/pkg/models"
)

func adminCtx() context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{UID: "admin@test", Admin: true})
}

func userCtx(uid string) context.Context {
	return auth.WithPrincipal(context.Background(), &auth.Principal{UID: uid})
}

// fakeVersionStore is an in-memory VersionStore mirroring the conditional
// write semantics of the Postgres implementation.
type fakeVersionStore struct {
	mu      sync.Mutex
	records map[string]*repository.VersionRecord
	latest  map[string]int
}

func newFakeVersionStore() *fakeVersionStore {
	return &fakeVersionStore{
		records: make(map[string]*repository.VersionRecord),
		latest:  make(map[string]int),
	}
}

func versionKey(id string, ver int) string { return fmt.Sprintf("%s@%d", id, ver) }

func copyRecord(rec *repository.VersionRecord) *repository.VersionRecord {
	out := *rec
	out.Body = append([]byte(nil), rec.Body...)
	return &out
}

func (f *fakeVersionStore) CreateVersion(ctx context.Context, rec *repository.VersionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := versionKey(rec.ID, rec.Ver)
	if _, exists := f.records[key]; exists {
		return apperr.Conflict("version %d of %q already exists", rec.Ver, rec.ID)
	}
	stored := copyRecord(rec)
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.records[key] = stored
	if rec.Ver > f.latest[rec.ID] {
		f.latest[rec.ID] = rec.Ver
	}
	return nil
}

func (f *fakeVersionStore) UpdateVersion(ctx context.Context, rec *repository.VersionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := versionKey(rec.ID, rec.Ver)
	stored, exists := f.records[key]
	if !exists {
		return apperr.NotFound("version %d of %q does not exist", rec.Ver, rec.ID)
	}
	if stored.Rev != rec.Rev {
		return apperr.Conflict("version %d of %q was changed concurrently", rec.Ver, rec.ID)
	}
	updated := copyRecord(rec)
	updated.Rev = stored.Rev + 1
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	f.records[key] = updated
	rec.Rev = updated.Rev
	return nil
}

func (f *fakeVersionStore) FindVersion(ctx context.Context, id string, ver int) (*repository.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.records[versionKey(id, ver)]
	if !exists {
		return nil, apperr.NotFound("version %d of %q does not exist", ver, id)
	}
	return copyRecord(stored), nil
}

func (f *fakeVersionStore) LatestVersion(ctx context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest[id], nil
}

func (f *fakeVersionStore) ListVersions(ctx context.Context, id string) ([]*repository.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.VersionRecord
	for _, rec := range f.records {
		if rec.ID == id {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ver > out[j].Ver })
	return out, nil
}

func (f *fakeVersionStore) List(ctx context.Context) ([]*repository.VersionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.VersionRecord
	for id, ver := range f.latest {
		if rec, ok := f.records[versionKey(id, ver)]; ok {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeDraftStore is an in-memory DraftStore enforcing both the primary key
// and the one-draft-per-target uniqueness rule.
type fakeDraftStore struct {
	mu     sync.Mutex
	drafts map[string]*repository.DraftRecord
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]*repository.DraftRecord)}
}

func copyDraft(rec *repository.DraftRecord) *repository.DraftRecord {
	out := *rec
	out.Body = append([]byte(nil), rec.Body...)
	return &out
}

func (f *fakeDraftStore) Create(ctx context.Context, rec *repository.DraftRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.drafts[rec.ID]; exists {
		return apperr.Conflict("a draft for %s %q v%d already exists", rec.Kind, rec.TargetID, rec.TargetVer)
	}
	for _, d := range f.drafts {
		if d.Kind == rec.Kind && d.TargetID == rec.TargetID && d.TargetVer == rec.TargetVer {
			return apperr.Conflict("a draft for %s %q v%d already exists", rec.Kind, rec.TargetID, rec.TargetVer)
		}
	}
	stored := copyDraft(rec)
	stored.Rev = 0
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.drafts[rec.ID] = stored
	rec.Rev = stored.Rev
	return nil
}

func (f *fakeDraftStore) Update(ctx context.Context, rec *repository.DraftRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.drafts[rec.ID]
	if !exists {
		return apperr.NotFound("draft %q does not exist", rec.ID)
	}
	if stored.Rev != rec.Rev {
		return apperr.Conflict("draft %q was changed concurrently", rec.ID)
	}
	updated := copyDraft(rec)
	updated.Kind = stored.Kind
	updated.UID = stored.UID
	updated.TargetID = stored.TargetID
	updated.TargetVer = stored.TargetVer
	updated.Rev = stored.Rev + 1
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now()
	f.drafts[rec.ID] = updated
	rec.Rev = updated.Rev
	return nil
}

func (f *fakeDraftStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.drafts[id]; !exists {
		return apperr.NotFound("draft %q does not exist", id)
	}
	delete(f.drafts, id)
	return nil
}

func (f *fakeDraftStore) Find(ctx context.Context, id string) (*repository.DraftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.drafts[id]
	if !exists {
		return nil, apperr.NotFound("draft %q does not exist", id)
	}
	return copyDraft(stored), nil
}

func (f *fakeDraftStore) ListByOwner(ctx context.Context, kind models.DraftKind, uid string) ([]*repository.DraftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.DraftRecord
	for _, d := range f.drafts {
		if d.Kind == kind && d.UID == uid {
			out = append(out, copyDraft(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeInstanceStore is an in-memory InstanceStore.
type fakeInstanceStore struct {
	mu        sync.Mutex
	instances map[string]*models.WorkflowInstance
}

func newFakeInstanceStore() *fakeInstanceStore {
	return &fakeInstanceStore{instances: make(map[string]*models.WorkflowInstance)}
}

func (f *fakeInstanceStore) Create(ctx context.Context, inst *models.WorkflowInstance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.instances[inst.ID]; exists {
		return apperr.Conflict("instance %q already exists", inst.ID)
	}
	stored := *inst
	f.instances[inst.ID] = &stored
	return nil
}

func (f *fakeInstanceStore) Find(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.instances[id]
	if !exists {
		return nil, apperr.NotFound("instance %q does not exist", id)
	}
	out := *stored
	return &out, nil
}

func (f *fakeInstanceStore) ListByWorkflow(ctx context.Context, key string) ([]*models.WorkflowInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.WorkflowInstance
	for _, inst := range f.instances {
		if inst.Wf == key {
			c := *inst
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeInstanceStore) UpdateWorkflowStatus(ctx context.Context, id string, status models.WorkflowStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.instances[id]
	if !exists {
		return apperr.NotFound("instance %q does not exist", id)
	}
	stored.WfStatus = status
	return nil
}

func (f *fakeInstanceStore) UpdateStepStatus(ctx context.Context, id string, index int, patch repository.StepStatusPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.instances[id]
	if !exists {
		return apperr.NotFound("instance %q does not exist", id)
	}
	if index < 0 || index >= len(stored.StStatuses) {
		return apperr.NotFound("instance %q has no step %d", id, index)
	}
	entry := &stored.StStatuses[index]
	entry.Status = patch.Status
	if patch.Msg != nil {
		entry.Msg = *patch.Msg
	}
	if patch.StartTime != nil {
		entry.StartTime = patch.StartTime
	}
	if patch.ClearStartTime {
		entry.StartTime = nil
	}
	if patch.EndTime != nil {
		entry.EndTime = patch.EndTime
	}
	if patch.ClearEndTime {
		entry.EndTime = nil
	}
	return nil
}

func (f *fakeInstanceStore) SaveStepAttribs(ctx context.Context, id string, index int, attribs models.StepAttribs) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, exists := f.instances[id]
	if !exists {
		return apperr.NotFound("instance %q does not exist", id)
	}
	if index < 0 || index >= len(stored.StStatuses) {
		return apperr.NotFound("instance %q has no step %d", id, index)
	}
	for len(stored.StAttribs) <= index {
		stored.StAttribs = append(stored.StAttribs, models.StepAttribs{})
	}
	stored.StAttribs[index] = attribs
	return nil
}

// fakeAuditStore records audit writes synchronously for inspection.
type fakeAuditStore struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeAuditStore) Write(ctx context.Context, uid, action string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

// MockEngineClient satisfies EngineClient.
type MockEngineClient struct {
	mock.Mock
}

func (m *MockEngineClient) StartExecution(ctx context.Context, in StartExecutionInput) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

// env bundles the full service graph over in-memory stores.
type env struct {
	stepStore     *fakeVersionStore
	templateStore *fakeVersionStore
	workflowStore *fakeVersionStore
	draftStore    *fakeDraftStore
	instanceStore *fakeInstanceStore
	engine        *MockEngineClient

	steps          *StepTemplateService
	templates      *WorkflowTemplateService
	workflows      *WorkflowService
	templateDrafts *TemplateDraftService
	workflowDrafts *WorkflowDraftService
	instances      *InstanceService
	trigger        *TriggerService
}

func newEnv() *env {
	logger := logging.NewNopLogger()
	auditor := NewAuditor(&fakeAuditStore{}, logger)

	e := &env{
		stepStore:     newFakeVersionStore(),
		templateStore: newFakeVersionStore(),
		workflowStore: newFakeVersionStore(),
		draftStore:    newFakeDraftStore(),
		instanceStore: newFakeInstanceStore(),
		engine:        &MockEngineClient{},
	}
	e.steps = NewStepTemplateService(e.stepStore, auditor, logger)
	e.templates = NewWorkflowTemplateService(e.templateStore, e.steps, auditor, logger)
	e.workflows = NewWorkflowService(e.workflowStore, e.templates, e.steps, auditor, logger)
	e.templateDrafts = NewTemplateDraftService(e.draftStore, e.templates, auditor, logger)
	e.workflowDrafts = NewWorkflowDraftService(e.draftStore, e.workflows, e.templates, auditor, logger)
	e.instances = NewInstanceService(e.instanceStore, e.workflows, auditor, logger)
	e.trigger = NewTriggerService(e.workflows, e.instances, e.engine, "sm-main", auditor, logger)
	return e
}

// seedStepTemplate publishes a minimal step template.
func (e *env) seedStepTemplate(ctx context.Context, id string) *models.StepTemplate {
	st, err := e.steps.Create(ctx, &models.StepTemplate{
		ID:    id,
		Ver:   1,
		Title: "Step " + id,
		Src:   models.StepSource{PluginID: "builtin/" + id},
		InputManifest: &models.InputManifest{
			Sections: []models.InputSection{{
				Children: []models.InputEntry{
					{Name: "region", Type: "string"},
					{Name: "size", Type: "string"},
				},
			}},
		},
	})
	if err != nil {
		panic(err)
	}
	return st
}

// seedWorkflowTemplate publishes a template selecting one seeded step.
func (e *env) seedWorkflowTemplate(ctx context.Context, id string) *models.WorkflowTemplate {
	e.seedStepTemplate(ctx, "st1")
	tpl, err := e.templates.Create(ctx, &models.WorkflowTemplate{
		ID:          id,
		Ver:         1,
		Title:       "Template " + id,
		InstanceTTL: 7,
		RunSpec:     models.DefaultRunSpec(),
		PropsOverrideOption: models.OverrideOption{
			Allowed: []string{"title", "desc", "instanceTtl"},
		},
		SelectedSteps: []models.SelectedStep{{
			ID:              "step-a",
			StepTemplateID:  "st1",
			StepTemplateVer: 1,
			Defaults:        map[string]string{"region": "us-east-1"},
			PropsOverrideOption: models.OverrideOption{
				Allowed: []string{"title"},
			},
			ConfigOverrideOption: models.OverrideOption{
				Allowed: []string{"size"},
			},
		}},
	})
	if err != nil {
		panic(err)
	}
	return tpl
}

// seedWorkflow publishes a workflow derived from the seeded template.
func (e *env) seedWorkflow(ctx context.Context, id, templateID string) *models.Workflow {
	e.seedWorkflowTemplate(ctx, templateID)
	wf, err := e.workflows.Create(ctx, &models.Workflow{
		ID:                 id,
		Ver:                1,
		WorkflowTemplateID: templateID,
		SelectedSteps: []models.WorkflowStep{
			{ID: "step-a"},
		},
	})
	if err != nil {
		panic(err)
	}
	return wf
}
