package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const boxProgram = `
const scene = require("scene");
const s = scene.createScene();
const m = scene.box({width: 1, height: 1, depth: 1});
m.setMaterial({color: "#3366ff", roughness: 0.5});
m.setPosition(0, 0.5, 0);
s.add(m);
finish(s.toGLB());
`

func runProgram(t *testing.T, code string, timeout time.Duration, maxLogLines int) Outcome {
	t.Helper()
	return NewBoundary(NewModuleRegistry(), timeout, maxLogLines).Run(code)
}

func TestBoundary_SuccessPath(t *testing.T) {
	outcome := runProgram(t, boxProgram, time.Second, 0)

	require.True(t, outcome.Succeeded(), "outcome: %+v", outcome.Failure)
	require.NotEmpty(t, outcome.Artifact)
	assert.Equal(t, []byte("glTF"), outcome.Artifact[:4])
}

func TestBoundary_TimeoutReportsExecutionFailure(t *testing.T) {
	start := time.Now()
	outcome := runProgram(t, `for (;;) {}`, 100*time.Millisecond, 0)
	elapsed := time.Since(start)

	require.False(t, outcome.Succeeded())
	assert.Equal(t, OriginExecution, outcome.Failure.Origin)
	assert.Contains(t, outcome.Failure.Message, "timed out")
	assert.Less(t, elapsed, 2*time.Second, "timeout must be reported with bounded extra latency")
}

func TestBoundary_DeniedCapabilityErrors(t *testing.T) {
	outcome := runProgram(t, `fetch("https://example.com");`, time.Second, 0)

	require.False(t, outcome.Succeeded())
	assert.Equal(t, OriginExecution, outcome.Failure.Origin)
}

func TestBoundary_DeniedGlobalsCannotBeRebound(t *testing.T) {
	program := `
try { setTimeout = function () {}; } catch (e) {}
try { Object.defineProperty(this, "fetch", {value: function () {}}); } catch (e) {}
if (typeof setTimeout !== "undefined") { throw new Error("setTimeout rebound"); }
if (typeof fetch !== "undefined") { throw new Error("fetch rebound"); }
` + boxProgram

	outcome := runProgram(t, program, time.Second, 0)
	require.True(t, outcome.Succeeded(), "outcome: %+v", outcome.Failure)
}

func TestBoundary_UnknownModuleFails(t *testing.T) {
	outcome := runProgram(t, `require("fs");`, time.Second, 0)

	require.False(t, outcome.Succeeded())
	assert.Equal(t, OriginExecution, outcome.Failure.Origin)
	assert.Contains(t, outcome.Failure.Message, "not available")
}

func TestBoundary_ModuleResolutionFallback(t *testing.T) {
	program := `
const scene = require("./scene.js");
const s = scene.createScene();
s.add(scene.sphere({radius: 0.5, segments: 8}));
finish(s.toGLB());
`
	outcome := runProgram(t, program, time.Second, 0)
	require.True(t, outcome.Succeeded(), "outcome: %+v", outcome.Failure)
}

func TestBoundary_FirstFinishWins(t *testing.T) {
	reference := runProgram(t, boxProgram, time.Second, 0)
	require.True(t, reference.Succeeded())

	program := boxProgram + `
const s2 = require("scene").createScene();
s2.add(require("scene").sphere({radius: 2}));
finish(s2.toGLB());
throw new Error("late failure after finish");
`
	outcome := runProgram(t, program, time.Second, 0)

	require.True(t, outcome.Succeeded(), "a settled run must not be unsettled by later code")
	assert.Equal(t, reference.Artifact, outcome.Artifact)
}

func TestBoundary_NoFinishIsFailure(t *testing.T) {
	outcome := runProgram(t, `const x = 1;`, time.Second, 0)

	require.False(t, outcome.Succeeded())
	assert.Contains(t, outcome.Failure.Message, "without calling finish")
}

func TestBoundary_SyntaxErrorIsExecutionFailure(t *testing.T) {
	outcome := runProgram(t, `const const = 1`, time.Second, 0)

	require.False(t, outcome.Succeeded())
	assert.Equal(t, OriginExecution, outcome.Failure.Origin)
	assert.Contains(t, outcome.Failure.Message, "does not parse")
}

func TestBoundary_ConsoleCapturedAndBounded(t *testing.T) {
	program := `
for (let i = 0; i < 8; i++) { console.log("line", i); }
throw new Error("boom");
`
	outcome := runProgram(t, program, time.Second, 5)

	require.False(t, outcome.Succeeded())
	require.Len(t, outcome.Failure.Logs, 5)
	assert.Equal(t, 3, outcome.Failure.DroppedLogs)
	assert.Equal(t, "line 3", outcome.Failure.Logs[0].Message)
	assert.Equal(t, "line 7", outcome.Failure.Logs[4].Message)
	assert.Equal(t, "log", outcome.Failure.Logs[0].Level)
}

func TestBoundary_FreshInstancePerProgram(t *testing.T) {
	first := NewBoundary(NewModuleRegistry(), time.Second, 0)
	outcome := first.Run(`globalThis.leak = "tainted";` + boxProgram)
	require.True(t, outcome.Succeeded(), "outcome: %+v", outcome.Failure)

	program := `
if (typeof leak !== "undefined") { throw new Error("state leaked between runs"); }
` + boxProgram
	second := NewBoundary(NewModuleRegistry(), time.Second, 0)
	outcome = second.Run(program)
	require.True(t, outcome.Succeeded(), "outcome: %+v", outcome.Failure)
}
