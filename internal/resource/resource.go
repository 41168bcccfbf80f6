// Package resource regenerates resource deposits over sim time.
package resource

import (
	"fmt"
	"strings"
	"time"

	"github.com/talgya/crossroads/internal/config"
	"github.com/talgya/crossroads/internal/ecs"
	"github.com/talgya/crossroads/internal/engine"
)

// Kind is the type of resource a deposit holds.
type Kind uint8

const (
	Metal Kind = iota
	Wood
	Stone
	Grain
	Gold
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{Metal, Wood, Stone, Grain, Gold}

var kindNames = [...]string{
	Metal: "metal",
	Wood:  "wood",
	Stone: "stone",
	Grain: "grain",
	Gold:  "gold",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String, case-insensitive.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown resource kind %q", s)
}

// Regenerates reports whether deposits of k grow back on their own.
func (k Kind) Regenerates() bool {
	return k == Metal
}

// Attributes is the per-deposit state record.
type Attributes struct {
	Kind   Kind    `json:"kind" db:"kind"`
	Amount float64 `json:"amount" db:"amount"` // ≥ 0
}

// DefaultRegenerationRate is the amount a regenerating deposit gains per
// second of sim time.
const DefaultRegenerationRate = 0.1

// Apply advances a by dt seconds at rate. Kinds that do not regenerate are
// left untouched.
func Apply(a *Attributes, rate, dt float64) {
	if !a.Kind.Regenerates() {
		return
	}
	a.Amount += rate * dt
}

// Options configures the resource system.
type Options struct {
	Interval         time.Duration
	RegenerationRate float64
	Workers          int
}

// NewSystem returns the resource update system. Its fan-out completes
// before the scheduler moves on.
func NewSystem(w *ecs.World, opts Options) *engine.TransformSystem[Attributes] {
	rate := opts.RegenerationRate
	return engine.NewTransformSystem(w, engine.TransformOptions[Attributes]{
		Name:     "resource",
		Interval: opts.Interval,
		Mode:     engine.Synchronous,
		Workers:  opts.Workers,
		Enabled: func(cfg config.Simulation) bool {
			return cfg.EnableResourceSystem
		},
		Transform: func(a *Attributes, dt float64) {
			Apply(a, rate, dt)
		},
	})
}

// Totals sums deposit amounts per kind. Call it between ticks.
func Totals(w *ecs.World) map[Kind]float64 {
	totals := make(map[Kind]float64, len(Kinds))
	ecs.Query[Attributes](w).ForEach(func(_ ecs.Entity, a *Attributes) {
		totals[a.Kind] += a.Amount
	})
	return totals
}
