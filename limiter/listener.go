package limiter

import (
	"sync/atomic"

	"github.com/climiter/climiter/limit"
)

const (
	listenerLive = iota
	listenerTerminal
)

// stdListener is the Listener implementation shared by the simple and partitioned limiters. Idempotence of the
// Live -> Terminal transition is enforced with a single CAS on a status word: the first terminal call wins and
// performs the release; every later call observes listenerTerminal already set and does nothing.
type stdListener struct {
	status atomic.Int32

	estimator   limit.Limit
	release     func()
	startNanos  int64
	nowNanos    func() int64
	inflight    int
	onTerminate func(outcome climiterOutcome)
}

type climiterOutcome int

const (
	outcomeSuccess climiterOutcome = iota
	outcomeDropped
	outcomeIgnored
)

func (l *stdListener) terminate(outcome climiterOutcome) {
	if !l.status.CompareAndSwap(listenerLive, listenerTerminal) {
		return
	}
	l.release()
	if outcome != outcomeIgnored && l.estimator != nil {
		now := l.nowNanos()
		didDrop := outcome == outcomeDropped
		l.estimator.OnSample(l.startNanos, now-l.startNanos, l.inflight, didDrop)
	}
	if l.onTerminate != nil {
		l.onTerminate(outcome)
	}
}

func (l *stdListener) OnSuccess() {
	l.terminate(outcomeSuccess)
}

func (l *stdListener) OnDropped() {
	l.terminate(outcomeDropped)
}

func (l *stdListener) OnIgnore() {
	l.terminate(outcomeIgnored)
}
