package notification

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is the fire-and-forget side channel used by the scheduling and
// prescription services. Delivery failures are logged and dropped; they
// must never surface as the owning operation's failure.
type Notifier interface {
	Notify(ctx context.Context, recipientID uuid.UUID, typ, title, message string)
}

type Service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Notify(ctx context.Context, recipientID uuid.UUID, typ, title, message string) {
	n := Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Type:        typ,
		Title:       title,
		Message:     message,
	}

	if err := s.repo.Insert(ctx, n); err != nil {
		s.logger.Warn("notification insert failed",
			zap.String("type", typ),
			zap.String("recipient_id", recipientID.String()),
			zap.Error(err),
		)
	}
}
