// Seeded world population using layered simplex noise.
// Religions and resource deposits are laid out on a sunflower spiral and
// their starting attributes sampled from independent noise fields, so
// neighbouring entities get similar but not identical values.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/crossroads/internal/ecs"
	"github.com/talgya/crossroads/internal/religion"
	"github.com/talgya/crossroads/internal/resource"
)

// goldenAngle spaces spiral points evenly (phyllotaxis), in degrees.
const goldenAngle = 137.5077

// GenConfig holds population parameters.
type GenConfig struct {
	Seed      int64 // Random seed (0 = random)
	Religions int   // Religion entities to spawn
	Deposits  int   // Resource deposits to spawn
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:      0,
		Religions: 200,
		Deposits:  2000,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Seed:      42,
		Religions: 12,
		Deposits:  60,
	}
}

// Counts summarizes what Populate spawned.
type Counts struct {
	Religions int
	Deposits  map[resource.Kind]int
}

// Populate spawns religions and deposits into w.
func Populate(w *ecs.World, cfg GenConfig) Counts {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Independent fields per attribute.
	influenceNoise := opensimplex.NewNormalized(seed)
	stabilityNoise := opensimplex.NewNormalized(seed + 1)
	growthNoise := opensimplex.NewNormalized(seed + 2)
	declineNoise := opensimplex.NewNormalized(seed + 3)
	kindNoise := opensimplex.NewNormalized(seed + 4)
	richnessNoise := opensimplex.NewNormalized(seed + 5)

	counts := Counts{Deposits: make(map[resource.Kind]int)}

	for i := 0; i < cfg.Religions; i++ {
		x, y := spiral(i)
		attrs := religion.Attributes{
			Influence: octaveNoise(influenceNoise, x, y, 4, 0.08, 0.5),
			Stability: octaveNoise(stabilityNoise, x, y, 4, 0.08, 0.5),
			// Rates stay small so a religion takes minutes of sim time to rise or fall.
			Growth:  octaveNoise(growthNoise, x, y, 3, 0.05, 0.5) * 0.02,
			Decline: octaveNoise(declineNoise, x, y, 3, 0.05, 0.5) * 0.02,
		}
		ecs.Add(w, w.Spawn(), attrs)
		counts.Religions++
	}

	for i := 0; i < cfg.Deposits; i++ {
		x, y := spiral(i)
		k := kindAt(octaveNoise(kindNoise, x, y, 2, 0.03, 0.5))
		richness := octaveNoise(richnessNoise, x, y, 4, 0.1, 0.5)
		attrs := resource.Attributes{
			Kind:   k,
			Amount: math.Round(richness*richness*500*100) / 100,
		}
		ecs.Add(w, w.Spawn(), attrs)
		counts.Deposits[k]++
	}

	return counts
}

// spiral returns the i-th point of a sunflower spiral with unit spacing.
func spiral(i int) (float64, float64) {
	r := math.Sqrt(float64(i))
	theta := float64(i) * goldenAngle * math.Pi / 180
	return r * math.Cos(theta), r * math.Sin(theta)
}

// kindAt maps a [0,1] noise value onto a resource kind. Metal and stone
// dominate; gold is rare.
func kindAt(v float64) resource.Kind {
	switch {
	case v < 0.30:
		return resource.Stone
	case v < 0.50:
		return resource.Metal
	case v < 0.70:
		return resource.Wood
	case v < 0.92:
		return resource.Grain
	default:
		return resource.Gold
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
