package generation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-object-generation/internal/models"
	"golang-object-generation/internal/services/gemini_ai"
	"golang-object-generation/internal/services/sandbox"
	"golang-object-generation/internal/utils"
)

type codegenStep struct {
	code string
	err  error
}

type fakeCodeGen struct {
	mu    sync.Mutex
	steps []codegenStep
	calls int
}

func (f *fakeCodeGen) GenerateObjectProgram(ctx context.Context, req gemini_ai.ProgramRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step := f.steps[f.calls%len(f.steps)]
	f.calls++
	return step.code, step.err
}

func (f *fakeCodeGen) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeExecutor struct {
	mu       sync.Mutex
	outcomes []sandbox.Outcome
	calls    int
}

func (f *fakeExecutor) Execute(ctx context.Context, code string, timeout time.Duration) sandbox.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	outcome := f.outcomes[f.calls%len(f.outcomes)]
	f.calls++
	return outcome
}

type fakeResultStore struct {
	mu      sync.Mutex
	records []models.ObjectTaskResultEntity
	addErr  error
}

func (f *fakeResultStore) Add(ctx context.Context, result *models.ObjectTaskResultEntity, opts ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.records = append(f.records, *result)
	return nil
}

func (f *fakeResultStore) ListByTask(ctx context.Context, taskID string, opts ...utils.DBOption) ([]models.ObjectTaskResultEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ObjectTaskResultEntity, 0, len(f.records))
	for _, rec := range f.records {
		if rec.TaskID == taskID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeResultStore) GetByVersion(ctx context.Context, taskID, version string, opts ...utils.DBOption) (*models.ObjectTaskResultEntity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].TaskID == taskID && f.records[i].Version == version {
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeResultStore) SetSnapshot(ctx context.Context, taskID, version string, snapshot []byte, opts ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].TaskID == taskID && f.records[i].Version == version {
			f.records[i].Snapshot = snapshot
			return nil
		}
	}
	return nil
}

func (f *fakeResultStore) all() []models.ObjectTaskResultEntity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ObjectTaskResultEntity(nil), f.records...)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func execFailure(msg string, logs ...sandbox.CapturedLog) sandbox.Outcome {
	return sandbox.Outcome{Failure: &sandbox.Failure{
		Origin:  sandbox.OriginExecution,
		Message: msg,
		Logs:    logs,
	}}
}

func execSuccess(artifact []byte) sandbox.Outcome {
	return sandbox.Outcome{Artifact: artifact}
}

func newTestTask(params TaskParams, codegen gemini_ai.CodeGenerator, exec ProgramExecutor, store *fakeResultStore) *Task {
	return NewTask(params, testLogger(), codegen, exec, store)
}

func TestTask_RetriesThenSucceeds(t *testing.T) {
	artifact := []byte("glTF-artifact")
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{
		execFailure("program completed without calling finish()"),
		execFailure("fetch is not a function"),
		execSuccess(artifact),
	}}
	store := &fakeResultStore{}

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", Name: "teapot", MaxRetries: 2}, codegen, exec, store)
	task.Run(context.Background())

	assert.Equal(t, models.TaskStatusSucceeded, task.Status())
	assert.Equal(t, 3, codegen.callCount())

	records := store.all()
	require.Len(t, records, 3)

	for _, rec := range records[:2] {
		assert.Equal(t, models.TaskStatusFailed, rec.Status)
		assert.True(t, strings.HasPrefix(rec.Version, "v1-a"), "sub-version %q must derive from the task version", rec.Version)
		assert.NotEqual(t, "v1", rec.Version)
		assert.NotEmpty(t, rec.Error)
		assert.Empty(t, rec.Content)
	}
	assert.NotEqual(t, records[0].Version, records[1].Version)

	final := records[2]
	assert.Equal(t, "v1", final.Version)
	assert.Equal(t, models.TaskStatusSucceeded, final.Status)
	assert.Equal(t, models.MimeTypeGLB, final.MimeType)
	assert.Equal(t, artifact, []byte(final.Content))
	assert.Empty(t, final.Error)

	select {
	case <-task.Done():
	default:
		t.Fatal("Done channel must be closed after settlement")
	}
}

func TestTask_AllAttemptsFail(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{
		execFailure("first failure"),
		execFailure("second failure"),
	}}
	store := &fakeResultStore{}

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 1}, codegen, exec, store)
	task.Run(context.Background())

	assert.Equal(t, models.TaskStatusFailed, task.Status())
	assert.Contains(t, task.ErrorMessage(), "second failure")

	records := store.all()
	require.Len(t, records, 2)
	assert.True(t, strings.HasPrefix(records[0].Version, "v1-a1-"))
	assert.Equal(t, "v1", records[1].Version, "the final failure is stored under the task's own version")
	assert.Contains(t, records[1].Error, "second failure")
}

func TestTask_CodegenFailureIsRecorded(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{err: assert.AnError}}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{execSuccess([]byte("unused"))}}
	store := &fakeResultStore{}

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 0}, codegen, exec, store)
	task.Run(context.Background())

	assert.Equal(t, models.TaskStatusFailed, task.Status())

	records := store.all()
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Error, "code generation failed")
	assert.Empty(t, records[0].Code, "no program text exists when the model call fails")
}

func TestTask_SandboxLogsArePersisted(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	failure := sandbox.Outcome{Failure: &sandbox.Failure{
		Origin:  sandbox.OriginExecution,
		Message: "boom",
		Logs: []sandbox.CapturedLog{
			{Level: "log", Message: "building mesh"},
			{Level: "warn", Message: "odd vertex count"},
		},
		DroppedLogs: 7,
	}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{failure}}
	store := &fakeResultStore{}

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 0}, codegen, exec, store)
	task.Run(context.Background())

	records := store.all()
	require.Len(t, records, 1)
	require.Len(t, records[0].Logs, 2)
	assert.Equal(t, "[log] building mesh", records[0].Logs[0])
	assert.Equal(t, "[warn] odd vertex count", records[0].Logs[1])
	assert.Equal(t, 7, records[0].DroppedLogs)
	assert.Equal(t, "program();", records[0].Code)
}

func TestTask_CancelBeforeRun(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{execSuccess([]byte("unused"))}}
	store := &fakeResultStore{}

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 2}, codegen, exec, store)
	task.Cancel()
	task.Run(context.Background())

	assert.Equal(t, models.TaskStatusFailed, task.Status())
	assert.Equal(t, ErrTaskCancelled.Error(), task.ErrorMessage())
	assert.Zero(t, codegen.callCount(), "a cancelled task must not reach the model")

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "v1", records[0].Version)
	assert.Equal(t, models.TaskStatusFailed, records[0].Status)
	assert.Equal(t, ErrTaskCancelled.Error(), records[0].Error)
}

func TestTask_CancelBetweenAttempts(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	store := &fakeResultStore{}

	var task *Task
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{execFailure("first failure")}}

	task = newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 5}, codegen, &cancellingExecutor{inner: exec, cancel: func() { task.Cancel() }}, store)
	task.Run(context.Background())

	assert.Equal(t, models.TaskStatusFailed, task.Status())
	assert.Equal(t, ErrTaskCancelled.Error(), task.ErrorMessage())
	assert.Equal(t, 1, codegen.callCount(), "no further attempts may run after a cancel")

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "v1", records[0].Version)
}

// cancellingExecutor cancels the task while an attempt is in flight, the way
// an API cancel lands mid-sandbox-run.
type cancellingExecutor struct {
	inner  ProgramExecutor
	cancel func()
}

func (c *cancellingExecutor) Execute(ctx context.Context, code string, timeout time.Duration) sandbox.Outcome {
	outcome := c.inner.Execute(ctx, code, timeout)
	c.cancel()
	return outcome
}

func TestTask_CancelledContextSettlesWithoutAttempts(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{execSuccess([]byte("unused"))}}
	store := &fakeResultStore{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 2}, codegen, exec, store)
	task.Run(ctx)

	assert.Equal(t, models.TaskStatusFailed, task.Status())
	assert.Equal(t, ErrNoAttempts.Error(), task.ErrorMessage())
	assert.Zero(t, codegen.callCount())

	records := store.all()
	require.Len(t, records, 1)
	assert.Equal(t, "v1", records[0].Version)
}

func TestTask_StatusTransitions(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{execSuccess([]byte("artifact"))}}
	store := &fakeResultStore{}

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 0}, codegen, exec, store)

	var mu sync.Mutex
	var transitions [][2]models.TaskStatus
	task.OnStatusChange(func(taskID string, from, to models.TaskStatus) {
		mu.Lock()
		transitions = append(transitions, [2]models.TaskStatus{from, to})
		mu.Unlock()
	})

	assert.Equal(t, models.TaskStatusQueued, task.Status())
	task.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 2)
	assert.Equal(t, [2]models.TaskStatus{models.TaskStatusQueued, models.TaskStatusProcessing}, transitions[0])
	assert.Equal(t, [2]models.TaskStatus{models.TaskStatusProcessing, models.TaskStatusSucceeded}, transitions[1])
}

func TestTask_CompletionFiresExactlyOnce(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{execSuccess([]byte("artifact"))}}
	store := &fakeResultStore{}

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 0}, codegen, exec, store)

	var mu sync.Mutex
	fired := 0
	var got CompletionResult
	task.OnComplete(func(result CompletionResult) {
		mu.Lock()
		fired++
		got = result
		mu.Unlock()
	})

	task.Run(context.Background())

	mu.Lock()
	assert.Equal(t, 1, fired)
	assert.Equal(t, models.TaskStatusSucceeded, got.Status)
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, []byte("artifact"), got.Artifact)
	mu.Unlock()

	// A listener registered after settlement fires immediately with the
	// recorded result.
	lateFired := 0
	task.OnComplete(func(result CompletionResult) {
		lateFired++
		assert.Equal(t, models.TaskStatusSucceeded, result.Status)
	})
	assert.Equal(t, 1, lateFired)
}

func TestTask_PersistenceFailureDoesNotChangeOutcome(t *testing.T) {
	codegen := &fakeCodeGen{steps: []codegenStep{{code: "program();"}}}
	exec := &fakeExecutor{outcomes: []sandbox.Outcome{execSuccess([]byte("artifact"))}}
	store := &fakeResultStore{addErr: assert.AnError}

	task := newTestTask(TaskParams{TaskID: "t1", Version: "v1", MaxRetries: 0}, codegen, exec, store)
	task.Run(context.Background())

	assert.Equal(t, models.TaskStatusSucceeded, task.Status())
	assert.Empty(t, store.all())
}
