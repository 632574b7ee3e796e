package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"golang-object-generation/internal/config"
	"golang-object-generation/internal/models"
	"golang-object-generation/internal/repository"
	"golang-object-generation/internal/services/gemini_ai"
	"golang-object-generation/internal/services/snapshot"
	"golang-object-generation/internal/utils"
	"golang-object-generation/pkg/redis"
)

// CompletionNotifier receives one notification per settled task.
type CompletionNotifier interface {
	NotifyTaskSettled(result CompletionResult, objectName string)
}

type snapshotRequest struct {
	version string
	done    chan struct{}
	image   []byte
	err     error
}

// Registry owns the in-flight tasks of this process: it starts them, merges
// them with persisted history for queries, and coalesces concurrent snapshot
// renders per (task, version).
type Registry struct {
	cfg      *config.Config
	log      *logrus.Logger
	runCtx   context.Context
	codegen  gemini_ai.CodeGenerator
	executor ProgramExecutor
	tasks    repository.ObjectTaskRepository
	results  repository.TaskResultRepository
	renderer snapshot.Renderer
	cache    *redis.Client
	notifier CompletionNotifier

	mu      sync.Mutex
	live    map[string]*Task
	pending map[string][]*snapshotRequest
}

func NewRegistry(
	ctx context.Context,
	cfg *config.Config,
	log *logrus.Logger,
	codegen gemini_ai.CodeGenerator,
	executor ProgramExecutor,
	tasks repository.ObjectTaskRepository,
	results repository.TaskResultRepository,
	renderer snapshot.Renderer,
	cache *redis.Client,
	notifier CompletionNotifier,
) *Registry {
	return &Registry{
		cfg:      cfg,
		log:      log,
		runCtx:   ctx,
		codegen:  codegen,
		executor: executor,
		tasks:    tasks,
		results:  results,
		renderer: renderer,
		cache:    cache,
		notifier: notifier,
		live:     make(map[string]*Task),
		pending:  make(map[string][]*snapshotRequest),
	}
}

// Submit persists the job, registers a live task, and starts its retry loop
// in the background.
func (r *Registry) Submit(ctx context.Context, req models.CreateGenerationRequest) (*models.ObjectTaskEntity, error) {
	props, err := json.Marshal(req.Props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal props: %w", err)
	}

	entity := &models.ObjectTaskEntity{
		ID:            uuid.NewString(),
		Version:       req.Version,
		Name:          req.Props.ObjectName,
		Description:   req.Props.ObjectDescription,
		LanguageModel: req.LanguageModel,
		Props:         props,
	}
	if err := r.tasks.Create(ctx, entity); err != nil {
		return nil, fmt.Errorf("failed to create object task: %w", err)
	}

	task := NewTask(TaskParams{
		TaskID:        entity.ID,
		Version:       entity.Version,
		Name:          entity.Name,
		Description:   entity.Description,
		LanguageModel: entity.LanguageModel,
		MaxRetries:    r.cfg.Generation.MaxRetries,
	}, r.log, r.codegen, r.executor, r.results)

	task.OnComplete(func(result CompletionResult) {
		r.mu.Lock()
		delete(r.live, result.TaskID)
		r.mu.Unlock()

		r.log.WithFields(logrus.Fields{
			"task_id": result.TaskID,
			"version": result.Version,
			"status":  result.Status,
		}).Info("Generation task settled")

		if r.notifier != nil {
			r.notifier.NotifyTaskSettled(result, entity.Name)
		}
	})

	r.mu.Lock()
	r.live[entity.ID] = task
	r.mu.Unlock()

	utils.SafeGo(func() {
		task.Run(r.runCtx)
	})

	return entity, nil
}

func (r *Registry) liveTask(taskID string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[taskID]
}

// Cancel requests cooperative cancellation of a live task.
func (r *Registry) Cancel(taskID string) error {
	task := r.liveTask(taskID)
	if task == nil {
		return ErrTaskNotFound
	}
	task.Cancel()
	return nil
}

// GetState merges the live task (shown as processing) with persisted
// attempts, one row per version, newest data winning for the live version.
func (r *Registry) GetState(ctx context.Context, taskID string) (*models.ObjectStateView, error) {
	entity, err := r.tasks.Get(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load object task: %w", err)
	}
	if entity == nil {
		return nil, ErrTaskNotFound
	}

	rows, err := r.results.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task results: %w", err)
	}

	view := &models.ObjectStateView{
		ID:          entity.ID,
		Name:        entity.Name,
		Description: entity.Description,
	}

	liveVersion := ""
	if task := r.liveTask(taskID); task != nil && !task.Status().IsTerminal() {
		liveVersion = task.Version()
		started, _ := task.Timestamps()
		row := models.TaskStateView{
			Version: task.Version(),
			Status:  models.TaskStatusProcessing,
		}
		if !started.IsZero() {
			row.StartedAt = utils.ToPointer(started)
		}
		view.Tasks = append(view.Tasks, row)
	}

	for _, row := range rows {
		if row.Version == liveVersion {
			continue
		}
		view.Tasks = append(view.Tasks, models.TaskStateView{
			Version:   row.Version,
			Status:    row.Status,
			Error:     row.Error,
			StartedAt: utils.ToPointer(row.StartedAt),
			EndedAt:   utils.ToPointer(row.EndedAt),
		})
	}

	return view, nil
}

// WaitForState blocks until the live task settles or the timeout elapses,
// then reports the merged state either way. A task with no live entry
// reports immediately.
func (r *Registry) WaitForState(ctx context.Context, taskID string, timeout time.Duration) (*models.ObjectStateView, error) {
	task := r.liveTask(taskID)
	if task != nil && timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-task.Done():
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	return r.GetState(ctx, taskID)
}

// ResultCode returns the stored program text for a version.
func (r *Registry) ResultCode(ctx context.Context, taskID, version string) (string, error) {
	row, err := r.results.GetByVersion(ctx, taskID, version)
	if err != nil {
		return "", fmt.Errorf("failed to load result: %w", err)
	}
	if row == nil || row.Code == "" {
		return "", ErrTaskNotFound
	}
	return row.Code, nil
}

// ResultContent returns the stored binary artifact and its mime type.
func (r *Registry) ResultContent(ctx context.Context, taskID, version string) ([]byte, string, error) {
	row, err := r.results.GetByVersion(ctx, taskID, version)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load result: %w", err)
	}
	if row == nil || len(row.Content) == 0 {
		return nil, "", ErrTaskNotFound
	}
	return row.Content, row.MimeType, nil
}

// Snapshot returns the preview image for (taskID, version), rendering it at
// most once no matter how many callers ask concurrently.
func (r *Registry) Snapshot(ctx context.Context, taskID, version string) ([]byte, error) {
	row, err := r.results.GetByVersion(ctx, taskID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	if row == nil {
		return nil, ErrTaskNotFound
	}
	if len(row.Snapshot) > 0 {
		return row.Snapshot, nil
	}
	if image := r.cachedSnapshot(ctx, taskID, version); image != nil {
		return image, nil
	}
	if row.Status != models.TaskStatusSucceeded || len(row.Content) == 0 {
		return nil, ErrNoSnapshot
	}

	r.mu.Lock()
	for _, req := range r.pending[taskID] {
		if req.version == version {
			r.mu.Unlock()
			return r.awaitSnapshot(ctx, req)
		}
	}
	req := &snapshotRequest{version: version, done: make(chan struct{})}
	r.pending[taskID] = append(r.pending[taskID], req)
	r.mu.Unlock()

	// The render call runs once; cleanup always removes the pending handle so
	// a failed render can be retried later.
	defer func() {
		r.mu.Lock()
		list := r.pending[taskID]
		for i, candidate := range list {
			if candidate == req {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(list) == 0 {
			delete(r.pending, taskID)
		} else {
			r.pending[taskID] = list
		}
		r.mu.Unlock()
		close(req.done)
	}()

	image, renderErr := r.renderer.Render(ctx, row.Content)
	if renderErr != nil {
		req.err = fmt.Errorf("snapshot render failed: %w", renderErr)
		return nil, req.err
	}
	req.image = image

	if err := r.results.SetSnapshot(ctx, taskID, version, image); err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"task_id": taskID,
			"version": version,
		}).Error("Failed to persist snapshot")
	}
	r.storeCachedSnapshot(ctx, taskID, version, image)

	return image, nil
}

func (r *Registry) awaitSnapshot(ctx context.Context, req *snapshotRequest) ([]byte, error) {
	select {
	case <-req.done:
		return req.image, req.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func snapshotCacheKey(taskID, version string) string {
	return fmt.Sprintf("objgen:snapshot:%s:%s", taskID, version)
}

func (r *Registry) cachedSnapshot(ctx context.Context, taskID, version string) []byte {
	if r.cache == nil {
		return nil
	}
	data, err := r.cache.Get(ctx, snapshotCacheKey(taskID, version)).Bytes()
	if err != nil {
		return nil
	}
	return data
}

func (r *Registry) storeCachedSnapshot(ctx context.Context, taskID, version string, image []byte) {
	if r.cache == nil {
		return
	}
	ttl := r.cfg.Snapshot.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := r.cache.Set(ctx, snapshotCacheKey(taskID, version), image, ttl).Err(); err != nil {
		r.log.WithError(err).Debug("Failed to cache snapshot")
	}
}
