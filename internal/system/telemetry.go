package system

import (
	"time"

	"github.com/l1jgo/assetcore/internal/core/event"
	coresys "github.com/l1jgo/assetcore/internal/core/system"
	"go.uber.org/zap"
)

// Counters is what TelemetrySystem accumulated since its last report.
type Counters struct {
	Shown   int
	Hidden  int
	Expired int
	Missing int
}

func (c Counters) zero() bool { return c == Counters{} }

// TelemetrySystem counts asset and effect events and logs a summary every
// interval ticks, skipping quiet windows. Phase 2 (Report).
type TelemetrySystem struct {
	log       *zap.Logger
	interval  int
	tickCount int
	cur       Counters
	last      Counters
}

// NewTelemetrySystem subscribes to bus. Register an EventSystem on the same
// bus so the handlers fire.
func NewTelemetrySystem(bus *event.Bus, log *zap.Logger, intervalTicks int) *TelemetrySystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	s := &TelemetrySystem{log: log, interval: intervalTicks}
	event.Subscribe(bus, func(event.EffectShown) { s.cur.Shown++ })
	event.Subscribe(bus, func(e event.EffectHidden) {
		if e.Expired {
			s.cur.Expired++
		} else {
			s.cur.Hidden++
		}
	})
	event.Subscribe(bus, func(e event.AssetMissing) {
		s.cur.Missing++
		s.log.Debug("asset missing", zap.String("key", e.Key), zap.String("request", e.Request), zap.String("reason", e.Reason))
	})
	return s
}

func (s *TelemetrySystem) Phase() coresys.Phase { return coresys.PhaseReport }

func (s *TelemetrySystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.last = s.cur
	s.cur = Counters{}
	if s.last.zero() {
		return
	}
	s.log.Info("asset telemetry",
		zap.Int("shown", s.last.Shown),
		zap.Int("hidden", s.last.Hidden),
		zap.Int("expired", s.last.Expired),
		zap.Int("missing", s.last.Missing),
	)
}

// Last returns the counters of the most recent report window.
func (s *TelemetrySystem) Last() Counters { return s.last }
