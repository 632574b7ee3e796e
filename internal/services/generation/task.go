package generation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"golang-object-generation/internal/models"
	"golang-object-generation/internal/repository"
	"golang-object-generation/internal/services/gemini_ai"
	"golang-object-generation/internal/services/sandbox"
	"golang-object-generation/internal/utils"
)

const DefaultMaxRetries = 2

// ProgramExecutor abstracts the sandbox host for the retry loop.
type ProgramExecutor interface {
	Execute(ctx context.Context, code string, timeout time.Duration) sandbox.Outcome
}

// CompletionResult is handed to completion listeners exactly once.
type CompletionResult struct {
	TaskID   string
	Version  string
	Status   models.TaskStatus
	Error    string
	Code     string
	Artifact []byte
}

type StatusListener func(taskID string, from, to models.TaskStatus)
type CompletionListener func(CompletionResult)

// TaskParams describes one description->artifact job.
type TaskParams struct {
	TaskID        string
	Version       string
	Name          string
	Description   string
	LanguageModel string
	// MaxRetries is the number of additional attempts after the first.
	// Negative means default.
	MaxRetries int
	// Timeout for each sandbox run; zero uses the host default.
	Timeout time.Duration
}

// Task drives one attempt sequence: prompt -> model -> sandbox -> evaluate,
// with bounded retries and a persisted record per attempt.
type Task struct {
	params  TaskParams
	log     *logrus.Logger
	codegen gemini_ai.CodeGenerator
	exec    ProgramExecutor
	results repository.TaskResultRepository

	mu         sync.Mutex
	status     models.TaskStatus
	errMsg     string
	cancelled  bool
	startedAt  time.Time
	endedAt    time.Time
	statusSubs []StatusListener
	settleSubs []CompletionListener
	done       chan struct{}
	completion CompletionResult
}

func NewTask(params TaskParams, log *logrus.Logger, codegen gemini_ai.CodeGenerator, exec ProgramExecutor, results repository.TaskResultRepository) *Task {
	if params.MaxRetries < 0 {
		params.MaxRetries = DefaultMaxRetries
	}
	return &Task{
		params:  params,
		log:     log,
		codegen: codegen,
		exec:    exec,
		results: results,
		status:  models.TaskStatusQueued,
		done:    make(chan struct{}),
	}
}

func (t *Task) ID() string      { return t.params.TaskID }
func (t *Task) Version() string { return t.params.Version }

func (t *Task) Status() models.TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Task) ErrorMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

func (t *Task) Timestamps() (started, ended time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt, t.endedAt
}

// Done is closed exactly once, at terminal settlement.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) OnStatusChange(fn StatusListener) {
	t.mu.Lock()
	if t.status.IsTerminal() {
		status := t.status
		t.mu.Unlock()
		fn(t.params.TaskID, status, status)
		return
	}
	t.statusSubs = append(t.statusSubs, fn)
	t.mu.Unlock()
}

// OnComplete registers a completion listener. Registering after settlement
// fires immediately with the recorded result.
func (t *Task) OnComplete(fn CompletionListener) {
	t.mu.Lock()
	if t.status.IsTerminal() {
		result := t.completion
		t.mu.Unlock()
		fn(result)
		return
	}
	t.settleSubs = append(t.settleSubs, fn)
	t.mu.Unlock()
}

// Cancel is cooperative: it blocks further attempts at the next phase
// boundary but never preempts a program already inside the sandbox.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status.IsTerminal() {
		return
	}
	t.cancelled = true
}

func (t *Task) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

type attemptOutcome struct {
	code     string
	artifact []byte
	errMsg   string
	logs     []sandbox.CapturedLog
	dropped  int
	started  time.Time
	ended    time.Time
}

// Run executes the whole retry loop. It must be called exactly once.
func (t *Task) Run(ctx context.Context) {
	t.transition(models.TaskStatusProcessing)

	attempts := t.params.MaxRetries + 1
	var last *attemptOutcome

	for attempt := 0; attempt < attempts; attempt++ {
		if t.isCancelled() {
			break
		}
		if stop, _ := utils.ShouldStopCtx(ctx, t.log); stop {
			break
		}

		outcome := t.runAttempt(ctx)

		if outcome.artifact != nil {
			t.persistResult(ctx, t.params.Version, models.TaskStatusSucceeded, outcome, "")
			t.settle(models.TaskStatusSucceeded, "", outcome)
			return
		}

		last = outcome

		t.log.WithFields(logrus.Fields{
			"task_id": t.params.TaskID,
			"attempt": attempt + 1,
			"error":   outcome.errMsg,
		}).Warn("Generation attempt failed")

		// Last attempt's failure is persisted below under the task's own
		// version; intermediate ones get a sub-version right away so they
		// stay inspectable even after a later success.
		if attempt == attempts-1 {
			break
		}
		if t.isCancelled() {
			break
		}
		t.persistResult(ctx, t.subVersion(attempt), models.TaskStatusFailed, outcome, outcome.errMsg)
	}

	if t.isCancelled() {
		errMsg := ErrTaskCancelled.Error()
		outcome := last
		if outcome == nil {
			now := time.Now()
			outcome = &attemptOutcome{started: now, ended: now}
		}
		t.persistResult(ctx, t.params.Version, models.TaskStatusFailed, outcome, errMsg)
		t.settle(models.TaskStatusFailed, errMsg, outcome)
		return
	}

	if last == nil {
		// Zero attempts ran without an explicit cancel: the run context was
		// already done, typically during shutdown.
		now := time.Now()
		outcome := &attemptOutcome{started: now, ended: now}
		t.persistResult(ctx, t.params.Version, models.TaskStatusFailed, outcome, ErrNoAttempts.Error())
		t.settle(models.TaskStatusFailed, ErrNoAttempts.Error(), outcome)
		return
	}

	t.persistResult(ctx, t.params.Version, models.TaskStatusFailed, last, last.errMsg)
	t.settle(models.TaskStatusFailed, last.errMsg, last)
}

func (t *Task) runAttempt(ctx context.Context) *attemptOutcome {
	outcome := &attemptOutcome{started: time.Now()}
	defer func() { outcome.ended = time.Now() }()

	code, err := t.codegen.GenerateObjectProgram(ctx, gemini_ai.ProgramRequest{
		ObjectName:        t.params.Name,
		ObjectDescription: t.params.Description,
		LanguageModel:     t.params.LanguageModel,
	})
	if err != nil {
		outcome.errMsg = fmt.Sprintf("code generation failed: %s", err)
		return outcome
	}
	outcome.code = code

	result := t.exec.Execute(ctx, code, t.params.Timeout)
	if !result.Succeeded() {
		outcome.errMsg = result.Failure.Error()
		outcome.logs = result.Failure.Logs
		outcome.dropped = result.Failure.DroppedLogs
		return outcome
	}

	outcome.artifact = result.Artifact
	return outcome
}

func (t *Task) subVersion(attempt int) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-a%d-%s", t.params.Version, attempt+1, suffix)
}

// persistResult is best-effort: storage trouble is logged, never reflected
// in task status.
func (t *Task) persistResult(ctx context.Context, version string, status models.TaskStatus, outcome *attemptOutcome, errMsg string) {
	record := &models.ObjectTaskResultEntity{
		TaskID:      t.params.TaskID,
		Version:     version,
		Status:      status,
		Code:        outcome.code,
		Error:       errMsg,
		DroppedLogs: outcome.dropped,
		StartedAt:   outcome.started,
		EndedAt:     outcome.ended,
	}
	if record.EndedAt.IsZero() {
		record.EndedAt = time.Now()
	}
	if status == models.TaskStatusSucceeded {
		record.MimeType = models.MimeTypeGLB
		record.Content = outcome.artifact
	}
	for _, entry := range outcome.logs {
		record.Logs = append(record.Logs, fmt.Sprintf("[%s] %s", entry.Level, entry.Message))
	}

	if err := t.results.Add(ctx, record); err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{
			"task_id": t.params.TaskID,
			"version": version,
		}).Error("Failed to persist attempt result")
	}
}

func (t *Task) transition(to models.TaskStatus) {
	t.mu.Lock()
	if t.status.IsTerminal() || t.status == to {
		t.mu.Unlock()
		return
	}
	from := t.status
	t.status = to
	if to == models.TaskStatusProcessing {
		t.startedAt = time.Now()
	}
	subs := append([]StatusListener(nil), t.statusSubs...)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(t.params.TaskID, from, to)
	}
}

// settle performs the single terminal transition and fires completion
// listeners exactly once. Listener lists are cleared to avoid leaks.
func (t *Task) settle(status models.TaskStatus, errMsg string, outcome *attemptOutcome) {
	t.mu.Lock()
	if t.status.IsTerminal() {
		t.mu.Unlock()
		return
	}
	from := t.status
	t.status = status
	t.errMsg = errMsg
	t.endedAt = time.Now()
	t.completion = CompletionResult{
		TaskID:   t.params.TaskID,
		Version:  t.params.Version,
		Status:   status,
		Error:    errMsg,
		Code:     outcome.code,
		Artifact: outcome.artifact,
	}
	statusSubs := t.statusSubs
	settleSubs := t.settleSubs
	t.statusSubs = nil
	t.settleSubs = nil
	result := t.completion
	t.mu.Unlock()

	for _, fn := range statusSubs {
		fn(t.params.TaskID, from, status)
	}
	for _, fn := range settleSubs {
		fn(result)
	}
	close(t.done)
}
