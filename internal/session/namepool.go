package session

import (
	"fmt"
	"math/rand"
)

// agentNames is the fixed pool of display names drawn for main agents.
// Names are released back to the pool when their session is deleted.
var agentNames = []string{
	"Scout", "Nova", "Pixel", "Echo", "Zephyr", "Comet", "Quill", "Rune",
	"Vega", "Atlas", "Lyra", "Orbit", "Ember", "Flux", "Glint", "Halo",
	"Indigo", "Juno", "Koda", "Lumen", "Mosaic", "Nimbus", "Onyx", "Prism",
	"Quartz", "Ripple", "Sable", "Tango", "Umbra", "Vertex", "Willow", "Zenith",
}

var agentColors = []string{
	"#ff6b6b", "#feca57", "#48dbfb", "#1dd1a1", "#5f27cd",
	"#ff9ff3", "#54a0ff", "#00d2d3", "#f368e0", "#10ac84",
}

var agentShapes = []string{
	"cube", "sphere", "cone", "torus", "cylinder", "octahedron",
}

// NamePool allocates display names for main agents. Acquire draws a random
// unused name; once the pool is exhausted it reuses names from the full list
// with a numeric suffix so allocation never fails. Not safe for concurrent
// use; the engine serializes access.
type NamePool struct {
	rng   *rand.Rand
	inUse map[string]bool
	extra int
}

func NewNamePool(rng *rand.Rand) *NamePool {
	return &NamePool{
		rng:   rng,
		inUse: make(map[string]bool),
	}
}

// Acquire returns a display name and marks it used.
func (p *NamePool) Acquire() string {
	free := make([]string, 0, len(agentNames))
	for _, name := range agentNames {
		if !p.inUse[name] {
			free = append(free, name)
		}
	}
	if len(free) == 0 {
		p.extra++
		base := agentNames[p.rng.Intn(len(agentNames))]
		name := fmt.Sprintf("%s-%d", base, p.extra)
		p.inUse[name] = true
		return name
	}
	name := free[p.rng.Intn(len(free))]
	p.inUse[name] = true
	return name
}

// Release returns a name to the pool. Releasing an unknown name is a no-op.
func (p *NamePool) Release(name string) {
	delete(p.inUse, name)
}

// InUse reports whether a name is currently allocated.
func (p *NamePool) InUse(name string) bool {
	return p.inUse[name]
}

// RandomColor and RandomShape pick presentational attributes for new agents.
// Purely cosmetic; the core never reads them back.
func (p *NamePool) RandomColor() string {
	return agentColors[p.rng.Intn(len(agentColors))]
}

func (p *NamePool) RandomShape() string {
	return agentShapes[p.rng.Intn(len(agentShapes))]
}
