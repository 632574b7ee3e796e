package sandbox

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

const DefaultTimeout = 5 * time.Second

type FailureOrigin string

const (
	// OriginSetup covers boundary construction and allowlist initialization.
	OriginSetup FailureOrigin = "setup"
	// OriginExecution covers everything the program did once it was running,
	// timeouts included.
	OriginExecution FailureOrigin = "execution"
)

// Failure is the single terminal error message of a boundary run.
type Failure struct {
	Origin      FailureOrigin
	Message     string
	Logs        []CapturedLog
	DroppedLogs int
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Origin, f.Message)
}

// Outcome is exactly one of Success(artifact) or Failure.
type Outcome struct {
	Artifact []byte
	Failure  *Failure
}

func (o Outcome) Succeeded() bool {
	return o.Failure == nil
}

// deniedGlobals are bound to a frozen undefined so generated code can neither
// call nor rebind them. Removal by omission is not enough: a program could
// re-introduce a same-named global and later code paths would trust it.
var deniedGlobals = []string{
	"fetch",
	"XMLHttpRequest",
	"WebSocket",
	"importScripts",
	"process",
	"setTimeout",
	"setInterval",
	"setImmediate",
	"clearTimeout",
	"clearInterval",
	"queueMicrotask",
}

type timeoutInterrupt struct {
	timeout time.Duration
}

type hostInterrupt struct {
	reason string
}

// Boundary runs one untrusted program to a single terminal outcome. An
// instance is used for exactly one program and never reused.
type Boundary struct {
	vm      *goja.Runtime
	modules *ModuleRegistry
	timeout time.Duration
	logs    *LogBuffer

	mu       sync.Mutex
	artifact []byte
	settled  bool
}

func NewBoundary(modules *ModuleRegistry, timeout time.Duration, maxLogLines int) *Boundary {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Boundary{
		vm:      goja.New(),
		modules: modules,
		timeout: timeout,
		logs:    NewLogBuffer(maxLogLines),
	}
}

// Interrupt aborts the running program from outside the boundary.
func (b *Boundary) Interrupt(reason string) {
	b.vm.Interrupt(hostInterrupt{reason: reason})
}

// Run executes the program and returns its single outcome. It blocks until
// the program finishes, errors, or the wall-clock watchdog fires.
func (b *Boundary) Run(code string) Outcome {
	if err := b.setup(); err != nil {
		return b.failure(OriginSetup, err.Error())
	}

	program, err := goja.Compile("object-program.js", code, false)
	if err != nil {
		return b.failure(OriginExecution, fmt.Sprintf("program does not parse: %s", err))
	}

	watchdog := time.AfterFunc(b.timeout, func() {
		b.vm.Interrupt(timeoutInterrupt{timeout: b.timeout})
	})
	defer watchdog.Stop()

	_, runErr := b.vm.RunProgram(program)

	b.mu.Lock()
	artifact := b.artifact
	b.mu.Unlock()

	// finish() settles the run; a later throw cannot unsettle it.
	if artifact != nil {
		return Outcome{Artifact: artifact}
	}

	if runErr != nil {
		return b.failure(OriginExecution, describeRunError(runErr))
	}
	return b.failure(OriginExecution, "program completed without calling finish()")
}

func (b *Boundary) failure(origin FailureOrigin, message string) Outcome {
	logs, dropped := b.logs.Snapshot()
	return Outcome{Failure: &Failure{
		Origin:      origin,
		Message:     message,
		Logs:        logs,
		DroppedLogs: dropped,
	}}
}

func (b *Boundary) setup() error {
	vm := b.vm
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	global := vm.GlobalObject()
	for _, name := range deniedGlobals {
		if err := global.DefineDataProperty(name, goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
			return fmt.Errorf("failed to deny global %q: %w", name, err)
		}
	}

	if err := b.setupConsole(); err != nil {
		return err
	}
	if err := b.setupRequire(); err != nil {
		return err
	}
	if err := global.DefineDataProperty("finish", vm.ToValue(b.finish), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return fmt.Errorf("failed to bind finish: %w", err)
	}
	return nil
}

// setupConsole redirects console output into the bounded log buffer so a
// chatty program cannot touch host streams.
func (b *Boundary) setupConsole() error {
	vm := b.vm
	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		err := console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			b.logs.Append(level, strings.Join(parts, " "))
			return goja.Undefined()
		})
		if err != nil {
			return fmt.Errorf("failed to bind console.%s: %w", level, err)
		}
	}
	return vm.GlobalObject().DefineDataProperty("console", console, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

func (b *Boundary) setupRequire() error {
	vm := b.vm
	if b.modules == nil {
		return errors.New("module registry is not configured")
	}

	// Per-run instance cache: requiring the same module twice returns the
	// same export object, and nothing leaks across runs.
	loaded := make(map[string]goja.Value)

	requireFn := func(call goja.FunctionCall) goja.Value {
		specifier := call.Argument(0).String()
		loader, canonical, ok := b.modules.Resolve(specifier)
		if !ok {
			panic(vm.NewGoError(fmt.Errorf("module %q is not available in this sandbox", specifier)))
		}
		if cached, ok := loaded[canonical]; ok {
			return cached
		}
		exports, err := loader(vm)
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("failed to load module %q: %w", canonical, err)))
		}
		loaded[canonical] = exports
		return exports
	}

	return vm.GlobalObject().DefineDataProperty("require", vm.ToValue(requireFn), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
}

// finish is the success path. The first call wins; later calls are no-ops.
func (b *Boundary) finish(call goja.FunctionCall) goja.Value {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.settled {
		return goja.Undefined()
	}

	var data []byte
	switch v := call.Argument(0).Export().(type) {
	case goja.ArrayBuffer:
		data = v.Bytes()
	case []byte:
		data = v
	default:
		panic(b.vm.NewTypeError("finish expects an ArrayBuffer"))
	}

	b.artifact = append([]byte(nil), data...)
	b.settled = true
	return goja.Undefined()
}

func describeRunError(err error) string {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		switch v := interrupted.Value().(type) {
		case timeoutInterrupt:
			return fmt.Sprintf("execution timed out after %s", v.timeout)
		case hostInterrupt:
			return fmt.Sprintf("execution aborted: %s", v.reason)
		default:
			return "execution interrupted"
		}
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return exception.Error()
	}
	return err.Error()
}
