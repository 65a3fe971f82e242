package crowd

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
	"github.com/talgya/stadium-wave/internal/config"
	"github.com/talgya/stadium-wave/internal/entropy"
	"github.com/talgya/stadium-wave/internal/grid"
)

// MoodField assigns starting moods. Happiness follows smooth noise across
// the stands so neighbors feel alike; thirst is uniform random.
type MoodField struct {
	cfg       config.CrowdConfig
	happiness opensimplex.Noise
	rng       entropy.Source
}

// NewMoodField builds a field from a seed and a random source.
func NewMoodField(cfg config.CrowdConfig, seed int64, rng entropy.Source) *MoodField {
	return &MoodField{
		cfg:       cfg,
		happiness: opensimplex.NewNormalized(seed + 7),
		rng:       rng,
	}
}

// Fan returns a fan seated at cell c.
func (m *MoodField) Fan(id FanID, c grid.Coord) *Fan {
	n := octaveNoise(m.happiness, float64(c.Col), float64(c.Row), 3, m.cfg.NoiseFrequency, 0.5)
	f := &Fan{
		ID:        id,
		Happiness: m.cfg.InitialHappiness + (n*2-1)*m.cfg.HappinessSpread,
		Thirst:    m.rng.Float64() * m.cfg.InitialThirstMax,
		Attention: m.cfg.InitialAttention,
	}
	f.clamp()
	return f
}

// octaveNoise layers several noise frequencies. Returns a value in [0, 1].
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
	if maxVal == 0 {
		return 0.5
	}
	return total / maxVal
}

// pickSeats chooses round(fraction × n) distinct indexes out of n using a
// partial Fisher-Yates shuffle.
func pickSeats(n int, fraction float64, rng entropy.Source) []int {
	k := int(math.Round(clamp01(fraction) * float64(n)))
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx[:k]
}
