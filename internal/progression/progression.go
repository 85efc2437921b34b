// internal/progression/progression.go
package progression

import (
	"math"

	"commande-track-api-server/internal/models"
)

// Compute maps an order's steps and a target status to a completion
// percentage. Terminal success statuses are always 100, whatever the steps
// say. Otherwise the percentage is the rounded share of completed steps over
// all steps; a blocked step counts against completion exactly like a pending
// one. An order with no steps is 0, never an error.
func Compute(steps []models.ProductionStep, target models.OrderStatus) int {
	if target.Terminal() {
		return 100
	}
	if len(steps) == 0 {
		return 0
	}
	completed := 0
	for _, s := range steps {
		if s.Status == models.StepCompleted {
			completed++
		}
	}
	return int(math.Round(100 * float64(completed) / float64(len(steps))))
}

// Clamp forces v into [0,100]. Every progression value crossing a trust
// boundary goes through here.
func Clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
