package progression

import (
	"testing"

	"commande-track-api-server/internal/models"

	"github.com/stretchr/testify/assert"
)

func steps(statuses ...models.StepStatus) []models.ProductionStep {
	out := make([]models.ProductionStep, 0, len(statuses))
	for i, s := range statuses {
		out = append(out, models.ProductionStep{ID: string(rune('a' + i)), Name: "step", Status: s})
	}
	return out
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name   string
		steps  []models.ProductionStep
		target models.OrderStatus
		want   int
	}{
		{
			name:   "one of two steps completed",
			steps:  steps(models.StepCompleted, models.StepPending),
			target: models.StatusInProduction,
			want:   50,
		},
		{
			name:   "no steps, non-terminal status",
			steps:  nil,
			target: models.StatusValidated,
			want:   0,
		},
		{
			name:   "all blocked, terminal status overrides",
			steps:  steps(models.StepBlocked, models.StepBlocked, models.StepBlocked),
			target: models.StatusShipped,
			want:   100,
		},
		{
			name:   "ready is terminal even with no steps",
			steps:  nil,
			target: models.StatusReady,
			want:   100,
		},
		{
			name:   "delivered is terminal",
			steps:  steps(models.StepPending),
			target: models.StatusDelivered,
			want:   100,
		},
		{
			name:   "blocked counts like pending",
			steps:  steps(models.StepCompleted, models.StepBlocked),
			target: models.StatusQualityCheck,
			want:   50,
		},
		{
			name:   "rounding up",
			steps:  steps(models.StepCompleted, models.StepCompleted, models.StepPending),
			target: models.StatusInProduction,
			want:   67,
		},
		{
			name:   "rounding down",
			steps:  steps(models.StepCompleted, models.StepPending, models.StepPending),
			target: models.StatusInProduction,
			want:   33,
		},
		{
			name:   "all completed non-terminal",
			steps:  steps(models.StepCompleted, models.StepCompleted),
			target: models.StatusQualityCheck,
			want:   100,
		},
		{
			name:   "none completed",
			steps:  steps(models.StepPending, models.StepInProgress),
			target: models.StatusInProduction,
			want:   0,
		},
		{
			name:   "canceled is not terminal success",
			steps:  steps(models.StepCompleted, models.StepPending),
			target: models.StatusCanceled,
			want:   50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(tt.steps, tt.target))
		})
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-5))
	assert.Equal(t, 0, Clamp(0))
	assert.Equal(t, 42, Clamp(42))
	assert.Equal(t, 100, Clamp(100))
	assert.Equal(t, 100, Clamp(250))
}
