// Package executor is a local stand-in for the remote feature executor.
// It persists features in SQLite, serves cached list reads and simulates
// agent runs that report back through push events.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/executor/db"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
)

const (
	DefaultCacheTTL         = 10 * time.Second
	DefaultRunDuration      = 5 * time.Second
	DefaultProgressInterval = time.Second
)

// ErrAuth marks a run failure caused by missing or rejected credentials.
// Outcome functions wrap it to produce an auth-kind error event.
var ErrAuth = errors.New("authentication failed")

var _ gateway.Gateway = (*Executor)(nil)

// Config holds executor tuning
type Config struct {
	// CacheTTL is how long list results are served without a query
	CacheTTL time.Duration

	// RunDuration is the total simulated length of a run
	RunDuration time.Duration

	// ProgressInterval is the period between progress events
	ProgressInterval time.Duration

	// PipelineSteps are visited in order after the initial in_progress phase
	PipelineSteps []string

	// RequirePlanApproval emits plan_approval_required once per run
	RequirePlanApproval bool

	// Outcome decides how a run ends. Nil means every run succeeds.
	Outcome func(feature.Feature) error
}

// Deps holds executor collaborators
type Deps struct {
	DB     *db.DB
	Bus    *events.Bus
	Logger logr.Logger
}

// Executor implements gateway.Gateway against a local database
type Executor struct {
	cfg   Config
	db    *db.DB
	bus   *events.Bus
	log   logr.Logger
	cache *listCache

	mu     sync.Mutex
	runs   map[string]*activeRun
	closed bool
	wg     sync.WaitGroup
}

type activeRun struct {
	id      string
	feature string
	project string
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an executor and subscribes its event journal to the bus
func New(deps Deps, cfg Config) *Executor {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.RunDuration <= 0 {
		cfg.RunDuration = DefaultRunDuration
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}

	x := &Executor{
		cfg:   cfg,
		db:    deps.DB,
		bus:   deps.Bus,
		log:   deps.Logger.WithName("executor"),
		cache: newListCache(cfg.CacheTTL),
		runs:  make(map[string]*activeRun),
	}
	x.bus.Subscribe(x.journal)
	return x
}

// Recover resets runs left active by a previous process.
// Returns the IDs of features moved back to the backlog.
func (x *Executor) Recover() ([]string, error) {
	ids, err := x.db.RecoverInterruptedRuns()
	if err != nil {
		return nil, fmt.Errorf("recover runs: %w", err)
	}
	if len(ids) > 0 {
		x.log.Info("recovered interrupted runs", "features", ids)
	}
	return ids, nil
}

// ListSummaries returns the lightweight view of a project's features
func (x *Executor) ListSummaries(ctx context.Context, project string, filter gateway.StatusFilter) ([]feature.Feature, error) {
	return x.list(ctx, project, viewSummary, filter)
}

// ListFull returns the complete view of a project's features
func (x *Executor) ListFull(ctx context.Context, project string, filter gateway.StatusFilter) ([]feature.Feature, error) {
	return x.list(ctx, project, viewFull, filter)
}

func (x *Executor) list(ctx context.Context, project, view string, filter gateway.StatusFilter) ([]feature.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return x.cache.get(cacheKey(project, view, filter), func() ([]feature.Feature, error) {
		rows, err := x.db.ListFeatures(project, filter.ExcludeCompleted)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", project, err)
		}
		out := make([]feature.Feature, 0, len(rows))
		for _, f := range rows {
			if view == viewSummary {
				out = append(out, f.Summary())
			} else {
				out = append(out, f)
			}
		}
		return out, nil
	})
}

// Create adds a backlog feature to project
func (x *Executor) Create(ctx context.Context, project string, draft feature.Draft) (feature.Feature, error) {
	if err := ctx.Err(); err != nil {
		return feature.Feature{}, err
	}
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return feature.Feature{}, fmt.Errorf("%w: title is required", gateway.ErrInvalidInput)
	}
	if project == "" {
		return feature.Feature{}, fmt.Errorf("%w: project is required", gateway.ErrInvalidInput)
	}

	f := &feature.Feature{
		ProjectRef:  project,
		Title:       title,
		Description: draft.Description,
		Status:      feature.StatusBacklog,
		Priority:    draft.Priority,
		DependsOn:   draft.DependsOn,
		BranchRef:   draft.BranchRef,
	}
	if err := x.db.CreateFeature(f); err != nil {
		return feature.Feature{}, fmt.Errorf("create feature: %w", err)
	}

	x.cache.invalidate(project)
	x.bus.Emit(events.NewEvent(events.FeatureCreated, project, f.ID))
	return f.Clone(), nil
}

// Update applies patch to a feature of project
func (x *Executor) Update(ctx context.Context, project, featureID string, patch feature.Patch) (feature.Feature, error) {
	if err := ctx.Err(); err != nil {
		return feature.Feature{}, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return feature.Feature{}, fmt.Errorf("%w: title cannot be empty", gateway.ErrInvalidInput)
	}

	current, err := x.get(project, featureID)
	if err != nil {
		return feature.Feature{}, err
	}

	updated := patch.Apply(*current)
	if updated.Status == feature.StatusCompleted && updated.CompletedAt == nil {
		now := time.Now().UTC()
		updated.CompletedAt = &now
	}
	if err := x.db.UpdateFeature(&updated); err != nil {
		return feature.Feature{}, translate(err)
	}

	x.cache.invalidate(project)
	x.bus.Emit(events.NewEvent(events.FeatureUpdated, project, featureID))
	return updated, nil
}

// Delete removes a feature, aborting its run first
func (x *Executor) Delete(ctx context.Context, project, featureID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := x.get(project, featureID); err != nil {
		return err
	}

	if r := x.detach(featureID); r != nil {
		r.cancel()
		<-r.done
		x.finishRun(r, db.RunStatusAborted, "feature deleted")
	}

	if err := x.db.DeleteFeature(featureID); err != nil {
		return translate(err)
	}

	x.cache.invalidate(project)
	x.bus.Emit(events.NewEvent(events.FeatureDeleted, project, featureID))
	return nil
}

// Start begins a run for a backlog feature.
// A feature that is already running or not in the backlog is refused,
// not failed: the result carries the reason.
func (x *Executor) Start(ctx context.Context, project, featureID string) (gateway.StartResult, error) {
	if err := ctx.Err(); err != nil {
		return gateway.StartResult{}, err
	}
	f, err := x.get(project, featureID)
	if err != nil {
		return gateway.StartResult{}, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return gateway.StartResult{Reason: "executor is shutting down"}, nil
	}
	if _, running := x.runs[featureID]; running {
		return gateway.StartResult{Reason: "already running"}, nil
	}
	if f.Status != feature.StatusBacklog {
		return gateway.StartResult{Reason: fmt.Sprintf("feature is %s", f.Status)}, nil
	}

	now := time.Now().UTC()
	f.Status = feature.StatusInProgress
	f.StartedAt = &now
	f.CompletedAt = nil
	f.Error = ""
	if err := x.db.UpdateFeature(f); err != nil {
		return gateway.StartResult{}, translate(err)
	}

	rec, err := x.db.CreateRun(featureID)
	if err != nil {
		return gateway.StartResult{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := &activeRun{
		id:      rec.ID,
		feature: featureID,
		project: project,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	x.runs[featureID] = r

	x.wg.Add(1)
	go x.execute(runCtx, r, f.Clone())

	x.log.V(1).Info("run started", "feature", featureID, "run", rec.ID)
	return gateway.StartResult{Accepted: true}, nil
}

// Stop aborts a running feature and returns it to the backlog
func (x *Executor) Stop(ctx context.Context, project, featureID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := x.get(project, featureID); err != nil {
		return err
	}

	r := x.detach(featureID)
	if r == nil {
		return fmt.Errorf("%w: %s is not running", gateway.ErrConflict, featureID)
	}
	r.cancel()
	<-r.done

	if err := x.setStatus(featureID, func(f *feature.Feature) {
		f.Status = feature.StatusBacklog
		f.PlanApprovalPending = false
	}); err != nil {
		x.log.Error(err, "failed to reset stopped feature", "feature", featureID)
	}
	x.finishRun(r, db.RunStatusAborted, "stopped by user")
	x.bus.Emit(events.NewEvent(events.Failed, project, featureID).
		WithError(events.ErrorKindAborted, errors.New("stopped by user")))
	return nil
}

// Running returns the IDs of features with an active run
func (x *Executor) Running() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	ids := make([]string, 0, len(x.runs))
	for id := range x.runs {
		ids = append(ids, id)
	}
	return ids
}

// History returns journaled events for project after sequence afterSeq
func (x *Executor) History(project string, afterSeq, limit int) ([]*db.EventRecord, error) {
	return x.db.ListEventsAfter(project, afterSeq, limit)
}

// Close aborts active runs without emitting events.
// Their features return to the backlog and their runs are marked interrupted.
func (x *Executor) Close() error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return nil
	}
	x.closed = true
	active := make([]*activeRun, 0, len(x.runs))
	for id, r := range x.runs {
		active = append(active, r)
		delete(x.runs, id)
	}
	x.mu.Unlock()

	for _, r := range active {
		r.cancel()
	}
	x.wg.Wait()

	var errs []error
	for _, r := range active {
		if err := x.setStatus(r.feature, func(f *feature.Feature) { f.Status = feature.StatusBacklog }); err != nil {
			errs = append(errs, err)
		}
		if err := x.db.FinishRun(r.id, db.RunStatusInterrupted, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// get loads a feature and checks it belongs to project
func (x *Executor) get(project, featureID string) (*feature.Feature, error) {
	f, err := x.db.GetFeature(featureID)
	if err != nil {
		return nil, translate(err)
	}
	if f.ProjectRef != project {
		return nil, fmt.Errorf("%w: %s in %s", gateway.ErrNotFound, featureID, project)
	}
	return f, nil
}

// detach removes and returns the active run for featureID, if any
func (x *Executor) detach(featureID string) *activeRun {
	x.mu.Lock()
	defer x.mu.Unlock()
	r := x.runs[featureID]
	delete(x.runs, featureID)
	return r
}

// setStatus applies fn to the stored feature and saves it
func (x *Executor) setStatus(featureID string, fn func(*feature.Feature)) error {
	f, err := x.db.GetFeature(featureID)
	if err != nil {
		return translate(err)
	}
	fn(f)
	return translate(x.db.UpdateFeature(f))
}

func (x *Executor) finishRun(r *activeRun, status db.RunStatus, msg string) {
	if err := x.db.FinishRun(r.id, status, msg); err != nil {
		x.log.Error(err, "failed to finish run", "run", r.id, "status", status)
	}
}

// translate maps repository errors onto gateway sentinels
func translate(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("%w: %v", gateway.ErrNotFound, err)
	}
	return err
}
