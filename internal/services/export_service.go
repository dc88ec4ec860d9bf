package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finbot/internal/amqp"
	applog "finbot/internal/log"
)

// ErrExportDisabled is returned when no message broker is configured.
var ErrExportDisabled = errors.New("export disabled")

// Publisher is implemented by amqp.Client.
type Publisher interface {
	PublishExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error
}

// ExportService turns an export intent into a queued request for the export worker.
type ExportService struct {
	publisher Publisher
}

func NewExportService(publisher Publisher) *ExportService {
	return &ExportService{publisher: publisher}
}

// RequestExport queues an export of uid's expenses recorded since since and
// returns the request id.
func (s *ExportService) RequestExport(ctx context.Context, uid int64, since time.Time) (string, error) {
	if s == nil || s.publisher == nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentExport).WarnContext(ctx,
			"AMQP client not available, skipping export request", applog.FieldUserID, uid)
		return "", ErrExportDisabled
	}

	msg := amqp.NewExportRequestMessage(uid, since)
	if err := s.publisher.PublishExportRequest(ctx, msg); err != nil {
		return "", fmt.Errorf("queue export: %w", err)
	}
	return msg.RequestID.String(), nil
}
