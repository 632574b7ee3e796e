package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"golang-object-generation/internal/config"
	"golang-object-generation/internal/utils"
)

const DefaultHostGrace = 2 * time.Second

// Host bridges the generation loop to the execution boundary. It spawns a
// fresh boundary per program and enforces a second, host-side deadline that
// still fires if the boundary itself never reports.
type Host struct {
	cfg     *config.SandboxConfig
	log     *logrus.Logger
	modules *ModuleRegistry
}

func NewHost(cfg *config.SandboxConfig, log *logrus.Logger) *Host {
	return &Host{
		cfg:     cfg,
		log:     log,
		modules: NewModuleRegistry(),
	}
}

// Modules exposes the allowlist so embedders can register extra modules
// before any program runs.
func (h *Host) Modules() *ModuleRegistry {
	return h.modules
}

// Execute runs one program to one outcome. The select below is the single
// settlement point: whichever of result, host deadline, or context wins,
// the others are discarded.
func (h *Host) Execute(ctx context.Context, code string, timeout time.Duration) Outcome {
	if timeout <= 0 {
		timeout = h.cfg.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	grace := h.cfg.HostGrace
	if grace <= 0 {
		grace = DefaultHostGrace
	}

	if h.cfg.MaxCodeBytes > 0 && len(code) > h.cfg.MaxCodeBytes {
		return Outcome{Failure: &Failure{
			Origin:  OriginExecution,
			Message: fmt.Sprintf("program is %d bytes, limit is %d", len(code), h.cfg.MaxCodeBytes),
		}}
	}

	boundary := NewBoundary(h.modules, timeout, h.cfg.MaxLogLines)
	resultCh := make(chan Outcome, 1)
	utils.SafeGo(func() {
		resultCh <- boundary.Run(code)
	})

	hostDeadline := time.NewTimer(timeout + grace)
	defer hostDeadline.Stop()

	select {
	case outcome := <-resultCh:
		return outcome
	case <-hostDeadline.C:
		boundary.Interrupt("host deadline exceeded")
		h.log.WithFields(logrus.Fields{
			"timeout": timeout.String(),
			"grace":   grace.String(),
		}).Warn("Sandbox did not report before host deadline")
		return Outcome{Failure: &Failure{
			Origin:  OriginExecution,
			Message: fmt.Sprintf("sandbox did not report within %s", timeout+grace),
		}}
	case <-ctx.Done():
		boundary.Interrupt("context cancelled")
		return Outcome{Failure: &Failure{
			Origin:  OriginExecution,
			Message: fmt.Sprintf("execution cancelled: %s", ctx.Err()),
		}}
	}
}
