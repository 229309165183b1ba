package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

// ReconcileHandler runs queued reconciliations inline.
func ReconcileHandler(trigger service.ReconcileTrigger) Handler {
	return func(ctx context.Context, raw json.RawMessage) error {
		var payload ReconcilePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("%w: invalid reconcile payload: %v", ErrPermanent, err)
		}
		return classify(trigger.TriggerReconcile(ctx, payload.AreaID))
	}
}

// NotifyHandler sends the comparison-ready email.
func NotifyHandler(n service.Notifier) Handler {
	return func(ctx context.Context, raw json.RawMessage) error {
		var payload NotifyPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return fmt.Errorf("%w: invalid notify payload: %v", ErrPermanent, err)
		}
		if err := classify(n.ComparisonReady(ctx, payload.AreaID, payload.ComparisonID)); err != nil {
			return err
		}
		log.Info().Str("comparison_id", payload.ComparisonID.String()).Msg("notify_worker: comparison notification sent")
		return nil
	}
}

// classify marks errors that no retry can fix. Conflicts, such as a busy lock, are
// retried.
func classify(err error) error {
	switch apierror.KindOf(err) {
	case apierror.KindNotFound, apierror.KindValidation, apierror.KindInvalidTransition, apierror.KindPermissionDenied:
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return err
}
