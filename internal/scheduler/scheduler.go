package scheduler

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/susnake/Lyssa/internal/verify"
)

// Scheduler runs named one-shot callbacks after a delay, implementing
// verify.Scheduler on top of time.AfterFunc.
type Scheduler struct{}

func New() *Scheduler {
	return &Scheduler{}
}

// handle cancels its timer. Cancelling an already-fired or
// already-cancelled timer is a no-op.
type handle struct {
	name  string
	timer *time.Timer
}

func (h *handle) Cancel() {
	if h.timer.Stop() {
		logrus.Debugf("cancelled timer %s", h.name)
	}
}

func (s *Scheduler) ScheduleOnce(delay time.Duration, name string, fn func()) verify.TimerHandle {
	logrus.Debugf("scheduling timer %s in %s", name, delay)
	return &handle{
		name:  name,
		timer: time.AfterFunc(delay, fn),
	}
}
