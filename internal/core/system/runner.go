package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Runner executes systems in phase order each tick. Systems in the same
// phase run in registration order. Not safe for concurrent use; the tick
// loop owns it.
type Runner struct {
	phases [phaseCount][]System
	log    *zap.Logger
	ticks  uint64
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{log: log}
}

func (r *Runner) Register(s System) {
	p := s.Phase()
	if p < 0 || p >= phaseCount {
		panic(fmt.Sprintf("system %T: invalid phase %d", s, p))
	}
	r.phases[p] = append(r.phases[p], s)
}

// Tick runs every phase. A panicking system is logged and skipped for this
// tick; the rest still run.
func (r *Runner) Tick(dt time.Duration) {
	r.ticks++
	for p := range r.phases {
		r.runPhase(Phase(p), dt)
	}
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	if phase < 0 || phase >= phaseCount {
		return
	}
	r.runPhase(phase, dt)
}

func (r *Runner) runPhase(phase Phase, dt time.Duration) {
	for _, s := range r.phases[phase] {
		r.update(phase, s, dt)
	}
}

func (r *Runner) update(phase Phase, s System, dt time.Duration) {
	defer func() {
		if v := recover(); v != nil {
			r.log.Error("system panicked",
				zap.String("system", fmt.Sprintf("%T", s)),
				zap.Stringer("phase", phase),
				zap.Uint64("tick", r.ticks),
				zap.Any("panic", v),
			)
		}
	}()
	s.Update(dt)
}

// Len returns the number of registered systems.
func (r *Runner) Len() int {
	n := 0
	for _, ss := range r.phases {
		n += len(ss)
	}
	return n
}

// Ticks returns how many full ticks have run.
func (r *Runner) Ticks() uint64 { return r.ticks }
