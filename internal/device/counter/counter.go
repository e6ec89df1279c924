// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package counter measures the frequency of the reference input with an
// auto-ranging edge gate and keeps a history of the measurements.
package counter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

const (
	PeriodMin = 1
	PeriodMax = 65535

	TimeoutMin = 100 * time.Millisecond
	TimeoutMax = 4000 * time.Millisecond

	// targetGate is the gate time auto-ranging aims for.
	targetGate = TimeoutMin
)

// Gate is a hardware edge counter. Once started it counts period+1 input
// edges and reports the time they took.
type Gate interface {
	Start(period uint16) error
	// Poll returns the measured time once the count is complete.
	Poll() (elapsed time.Duration, done bool)
	Stop()
}

type state int

const (
	stateIdle state = iota
	stateWaiting
)

// Snapshot is a consistent view of the counter.
type Snapshot struct {
	Frequency    float64 // Hz, zero when no input is detected
	Average      float64 // Hz, mean of the history
	Period       uint16
	GateTime     time.Duration
	Measurements uint64
	Timeouts     uint64
	TimedOut     bool
}

// Counter runs measurements back to back and retunes the gate period after
// each one so the gate time stays near 100ms.
type Counter struct {
	gate Gate
	now  func() time.Time

	mu       sync.Mutex
	state    state
	started  time.Time
	period   uint16
	timeout  time.Duration
	freq     float64
	gateTime time.Duration
	timedOut bool

	history []float64
	next    int
	filled  int

	measurements uint64
	timeouts     uint64
}

// New creates a Counter on gate keeping history measurements.
func New(gate Gate, history int) *Counter {
	if history < 1 {
		history = 1
	}
	return &Counter{
		gate:    gate,
		now:     time.Now,
		period:  PeriodMin,
		timeout: TimeoutMax,
		history: make([]float64, history),
	}
}

// Task advances the measurement. It never blocks.
func (c *Counter) Task() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	switch c.state {
	case stateIdle:
		if err := c.gate.Start(c.period); err != nil {
			return fmt.Errorf("counter: start gate: %w", err)
		}
		c.started = now
		c.state = stateWaiting

	case stateWaiting:
		elapsed, done := c.gate.Poll()
		if done {
			c.state = stateIdle
			if elapsed <= 0 {
				return nil
			}
			c.record(float64(c.period)+1, elapsed)
			return nil
		}
		if now.Sub(c.started) > c.timeout {
			c.gate.Stop()
			c.state = stateIdle
			c.expire()
		}
	}
	return nil
}

func (c *Counter) record(edges float64, elapsed time.Duration) {
	c.freq = edges / elapsed.Seconds()
	c.gateTime = elapsed
	c.timedOut = false
	c.measurements++

	c.history[c.next] = c.freq
	c.next = (c.next + 1) % len(c.history)
	if c.filled < len(c.history) {
		c.filled++
	}

	want := math.Round(c.freq*targetGate.Seconds()) - 1
	c.period = uint16(math.Max(PeriodMin, math.Min(PeriodMax, want)))

	timeout := time.Duration(2 * (float64(c.period) + 1) / c.freq * float64(time.Second))
	c.timeout = min(max(timeout, TimeoutMin), TimeoutMax)
}

// expire handles a gate that did not complete: the input is reported lost
// and the range restarts from the shortest period.
func (c *Counter) expire() {
	if !c.timedOut {
		slog.Warn("Counter lost input", "period", c.period, "timeout", c.timeout)
	}
	c.freq = 0
	c.timedOut = true
	c.timeouts++
	c.period = PeriodMin
	c.timeout = TimeoutMax
}

// Frequency returns the last measured frequency, or zero when no input is
// present.
func (c *Counter) Frequency() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freq
}

// Average returns the mean of the recorded measurements.
func (c *Counter) Average() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.average()
}

func (c *Counter) average() float64 {
	if c.filled == 0 {
		return 0
	}
	var sum float64
	for _, f := range c.history[:c.filled] {
		sum += f
	}
	return sum / float64(c.filled)
}

// Snapshot returns the counter state.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Frequency:    c.freq,
		Average:      c.average(),
		Period:       c.period,
		GateTime:     c.gateTime,
		Measurements: c.measurements,
		Timeouts:     c.timeouts,
		TimedOut:     c.timedOut,
	}
}

// Run calls Task every interval until ctx is done.
func (c *Counter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Task(); err != nil {
			slog.Error("Counter task failed", "err", err)
		}
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.gate.Stop()
			c.mu.Unlock()
			return
		case <-ticker.C:
		}
	}
}
