// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package counter

import (
	"math"
	"sync"
	"time"
)

// SimGate is a Gate fed by an ideal input of a fixed frequency.
type SimGate struct {
	mu     sync.Mutex
	now    func() time.Time
	hz     float64
	period uint16
	start  time.Time
	armed  bool
}

// NewSimGate creates a SimGate whose input runs at hz. Zero means no input.
func NewSimGate(hz float64) *SimGate {
	return &SimGate{now: time.Now, hz: hz}
}

// SetFrequency changes the input frequency.
func (g *SimGate) SetFrequency(hz float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hz = hz
}

func (g *SimGate) Start(period uint16) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.period = period
	g.start = g.now()
	g.armed = true
	return nil
}

func (g *SimGate) Poll() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.armed || g.hz <= 0 {
		return 0, false
	}
	need := time.Duration(math.Round((float64(g.period) + 1) / g.hz * float64(time.Second)))
	if g.now().Sub(g.start) < need {
		return 0, false
	}
	g.armed = false
	return need, true
}

func (g *SimGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = false
}
