// Package layout generates canvas coordinates for newly created cards.
// The graph store treats returned positions as opaque; determinism (via a
// seeded generator) exists so tests and seeding produce stable layouts.
package layout

import (
	"math/rand"

	"loom/internal/domain/models"
)

// Default spacing between grid cells, tuned for the card size the canvas
// renders at default zoom.
const (
	DefaultSpacingX = 420.0
	DefaultSpacingY = 320.0
	DefaultColumns  = 4
)

// RandFunc yields values in [0,1). rand.Float64 and seeded LCGs both fit.
type RandFunc func() float64

// NewSeededRand returns a deterministic RandFunc backed by a
// linear-congruential generator. Same seed, same sequence.
func NewSeededRand(seed int64) RandFunc {
	// Numerical Recipes LCG constants.
	state := uint64(seed)
	return func() float64 {
		state = state*6364136223846793005 + 1442695040888963407
		// Use the high 53 bits for the mantissa.
		return float64(state>>11) / float64(1<<53)
	}
}

// Jitter returns a random offset in [-amount/2, amount/2). A zero amount
// always yields zero.
func Jitter(amount float64, rng RandFunc) float64 {
	if amount == 0 {
		return 0
	}
	if rng == nil {
		rng = rand.Float64
	}
	return (rng() - 0.5) * amount
}

// GridPositions lays out count cards in rows of columns cells, each
// jittered by up to jitter units. With a nil rng the layout is
// non-deterministic; pass NewSeededRand for reproducible output.
func GridPositions(count, columns int, spacingX, spacingY, jitter float64, rng RandFunc) []models.Position {
	if columns <= 0 {
		columns = DefaultColumns
	}
	if spacingX <= 0 {
		spacingX = DefaultSpacingX
	}
	if spacingY <= 0 {
		spacingY = DefaultSpacingY
	}

	positions := make([]models.Position, 0, count)
	for i := 0; i < count; i++ {
		col := i % columns
		row := i / columns
		positions = append(positions, models.Position{
			X: float64(col)*spacingX + Jitter(jitter, rng),
			Y: float64(row)*spacingY + Jitter(jitter, rng),
		})
	}
	return positions
}

// ChildPosition places a new branch child below and to the right of its
// parent, jittered so stacked siblings do not overlap exactly.
func ChildPosition(parent models.Position, siblingIndex int, rng RandFunc) models.Position {
	return models.Position{
		X: parent.X + DefaultSpacingX + Jitter(40, rng),
		Y: parent.Y + float64(siblingIndex)*DefaultSpacingY + Jitter(40, rng),
	}
}

// MergePosition centers a merge node beneath its sources.
func MergePosition(sources []models.Position, rng RandFunc) models.Position {
	if len(sources) == 0 {
		return models.Position{}
	}
	var sumX, maxY float64
	for _, p := range sources {
		sumX += p.X
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return models.Position{
		X: sumX/float64(len(sources)) + Jitter(40, rng),
		Y: maxY + DefaultSpacingY,
	}
}
