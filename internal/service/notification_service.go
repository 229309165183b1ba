package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/model"
)

// Mailer delivers a message. *infra.Mailer implements it.
type Mailer interface {
	Send(msg infra.Message) error
}

// NotificationService emails supervisors when a comparison is ready for review,
// attaching the area section of the report as a PDF.
type NotificationService interface {
	Notifier
}

type notificationService struct {
	Deps
	mailer Mailer
}

func NewNotificationService(deps Deps, mailer Mailer) NotificationService {
	return &notificationService{Deps: deps, mailer: mailer}
}

func (s *notificationService) ComparisonReady(ctx context.Context, areaID, comparisonID uuid.UUID) error {
	area, err := s.Store.Areas().FindByID(ctx, areaID)
	if err != nil {
		return storeErr(err, "area", areaID)
	}
	cmp, err := s.Store.Comparisons().FindByID(ctx, comparisonID)
	if err != nil {
		return storeErr(err, "comparison", comparisonID)
	}
	asgs, err := s.Store.Assignments().ListByArea(ctx, areaID)
	if err != nil {
		return err
	}
	discs, err := s.Store.Discrepancies().ListByComparison(ctx, comparisonID)
	if err != nil {
		return err
	}
	users, err := s.Store.Users().List(ctx)
	if err != nil {
		return err
	}
	var to []string
	for _, u := range users {
		if u.Role == model.RoleSupervisor {
			to = append(to, u.Email)
		}
	}
	if len(to) == 0 {
		log.Warn().Str("comparison_id", comparisonID.String()).Msg("notify: no supervisors to notify")
		return nil
	}

	attachment, err := infra.RenderComparisonPDF(infra.AreaReport{
		Area:          *area,
		Assignments:   asgs,
		Comparison:    cmp,
		Discrepancies: discs,
	})
	if err != nil {
		return err
	}
	msg := infra.Message{
		To:      to,
		Subject: fmt.Sprintf("Area %s is ready for approval (%s)", area.Name, cmp.Status),
		Body: fmt.Sprintf("The two counts of area %s were compared.\n\nStatus: %s\nDiscrepancies: %d\nVariance rate: %.2f%%\n",
			area.Name, cmp.Status, len(discs), cmp.VarianceRate*100),
		Attachments: []infra.Attachment{{
			Filename:    fmt.Sprintf("comparison-%s.pdf", cmp.ID),
			ContentType: infra.ContentTypePDF,
			Data:        attachment,
		}},
	}
	if err := s.mailer.Send(msg); err != nil {
		return fmt.Errorf("notify: send comparison %s: %w", comparisonID, err)
	}
	log.Info().Str("comparison_id", comparisonID.String()).Int("recipients", len(to)).Msg("notify: supervisors emailed")
	return nil
}
