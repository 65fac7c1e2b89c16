package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/openharvest/backend-hub/internal/events"
	"github.com/openharvest/backend-hub/internal/obs"
)

// TypeOverrideReset is the asynq task type for the scheduled reset of
// resettable override stock.
const TypeOverrideReset = "overrides:reset"

// NewOverrideResetTask builds the task the scheduler enqueues on its
// cron. The task carries no payload; the reset is a single statement.
func NewOverrideResetTask() *asynq.Task {
	return asynq.NewTask(TypeOverrideReset, nil, asynq.MaxRetry(3))
}

// OverrideResetter restores resettable overrides to their default
// stock. *catalog.PGStore satisfies it.
type OverrideResetter interface {
	ResetResettableOverrides(ctx context.Context) (int64, error)
}

// OverrideResetHandler processes override reset tasks.
type OverrideResetHandler struct {
	Store  OverrideResetter
	Events *events.Bus
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h *OverrideResetHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	if h.Store == nil {
		return errors.New("queue: override resetter not configured")
	}
	rows, err := h.Store.ResetResettableOverrides(ctx)
	if err != nil {
		h.Logger.Error().Err(err).Msg("override reset failed")
		return err
	}
	if obs.OverrideResetRows != nil {
		obs.OverrideResetRows.Set(float64(rows))
	}
	if h.Events != nil {
		runID := uuid.New()
		if _, err := h.Events.Emit(ctx, events.TopicOverridesReset, runID, map[string]any{
			"runId": runID.String(),
			"rows":  rows,
		}); err != nil {
			h.Logger.Error().Err(err).Msg("emit overrides.reset")
		}
	}
	h.Logger.Info().Int64("rows", rows).Msg("override stock reset")
	return nil
}
