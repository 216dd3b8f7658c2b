// Package controlloop runs the scheduler at a fixed period on its own
// goroutine.
package controlloop

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
)

// Ticker is the scheduler as seen by the loop.
type Ticker interface {
	Tick()
	Period() time.Duration
}

// Loop ticks the scheduler every period.  Anything else that touches the
// scheduler, the robot or the shaper must do it through Do, which runs
// between ticks.
type Loop struct {
	ticker Ticker
	clock  clock.Clock
	logger golog.Logger
	// afterTick runs after every tick, e.g. to advance a simulation.
	afterTick []func()

	lock   sync.Mutex
	paused bool
	ticks  int

	cancel context.CancelFunc
	stopWG sync.WaitGroup
}

func New(ticker Ticker, clk clock.Clock, logger golog.Logger, afterTick ...func()) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	return &Loop{
		ticker:    ticker,
		clock:     clk,
		logger:    logger.Named("loop"),
		afterTick: afterTick,
	}
}

func (l *Loop) Start(ctx context.Context) {
	var loopCtx context.Context
	loopCtx, l.cancel = context.WithCancel(ctx)
	// Create the ticker before returning so that a mock clock advanced right
	// after Start sees it.
	t := l.clock.Ticker(l.ticker.Period())
	l.stopWG.Add(1)
	go l.loop(loopCtx, t)
}

func (l *Loop) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.stopWG.Wait()
	l.cancel = nil
}

// Do runs fn between ticks.
func (l *Loop) Do(fn func()) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fn()
}

// SetPaused stops (or restarts) ticking without stopping the goroutine.
func (l *Loop) SetPaused(paused bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if paused != l.paused {
		l.logger.Infow("loop paused", "paused", paused)
	}
	l.paused = paused
}

// Step runs one tick now, even while paused.
func (l *Loop) Step() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.tick()
}

// Ticks is the number of ticks run so far.
func (l *Loop) Ticks() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.ticks
}

func (l *Loop) loop(ctx context.Context, t *clock.Ticker) {
	defer l.stopWG.Done()
	defer t.Stop()
	period := l.ticker.Period()
	l.logger.Infow("control loop started", "period", period)
	for {
		select {
		case <-ctx.Done():
			l.logger.Infow("control loop stopped", "ticks", l.Ticks())
			return
		case <-t.C:
			start := l.clock.Now()
			l.tickOnce()
			if took := l.clock.Since(start); took > period {
				l.logger.Warnw("tick overran", "took", took, "period", period)
			}
		}
	}
}

func (l *Loop) tickOnce() {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.paused {
		return
	}
	l.tick()
}

func (l *Loop) tick() {
	l.ticker.Tick()
	l.ticks++
	for _, f := range l.afterTick {
		f()
	}
}
