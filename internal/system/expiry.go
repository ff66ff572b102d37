package system

import (
	"time"

	coresys "github.com/l1jgo/assetcore/internal/core/system"
)

// Expirer is implemented by *effect.Pool.
type Expirer interface {
	Expire(now time.Time) int
}

// EffectExpirySystem hides effect instances past their lifetime at tick
// end. Phase 3 (Cleanup).
type EffectExpirySystem struct {
	effects Expirer
	now     func() time.Time
}

func NewEffectExpirySystem(effects Expirer, now func() time.Time) *EffectExpirySystem {
	if now == nil {
		now = time.Now
	}
	return &EffectExpirySystem{effects: effects, now: now}
}

func (s *EffectExpirySystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *EffectExpirySystem) Update(_ time.Duration) {
	s.effects.Expire(s.now())
}
