// Package notifications records durable user-visible events and fans them
// out over SMS and push when providers are configured. Row persistence is
// the contract; external delivery is best-effort.
package notifications

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/bus"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/models"
)

// Service writes notification rows and triggers delivery.
type Service struct {
	repo *Repository
	bus  bus.Bus

	// Senders are nil when credentials are absent; notifications then
	// stay rows + bus publishes only.
	sms  SMSSender
	push PushSender
}

// NewService creates the notification service. sms and push may be nil.
func NewService(repo *Repository, b bus.Bus, sms SMSSender, push PushSender) *Service {
	return &Service{repo: repo, bus: b, sms: sms, push: push}
}

// Notify records a notification and delivers it best-effort. Row insertion
// failure is the only error surfaced to callers.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, rideID *uuid.UUID, notifType, title, body string, data map[string]interface{}) error {
	n := &models.Notification{
		ID:     uuid.New(),
		UserID: userID,
		RideID: rideID,
		Type:   notifType,
		Title:  title,
		Body:   body,
		Data:   data,
	}

	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return err
	}

	if rideID != nil {
		payload := map[string]interface{}{
			"type":         "notification",
			"notification": n,
		}
		if err := s.bus.Publish(ctx, bus.RideTopic(*rideID), payload); err != nil {
			logger.WarnContext(ctx, "notification publish failed",
				zap.String("ride_id", rideID.String()),
				zap.Error(err),
			)
		}
	}

	s.deliverSMS(ctx, n)
	s.deliverPush(ctx, n)
	return nil
}

// RegisterDevice associates a push token with a user.
func (s *Service) RegisterDevice(ctx context.Context, userID uuid.UUID, token, platform string) error {
	return s.repo.RegisterDeviceToken(ctx, userID, token, platform)
}

// ListForUser returns a user's notification history, newest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Notification, int64, error) {
	return s.repo.ListForUser(ctx, userID, limit, offset)
}

func (s *Service) deliverSMS(ctx context.Context, n *models.Notification) {
	if s.sms == nil {
		return
	}

	phone, err := s.repo.GetUserPhone(ctx, n.UserID)
	if err != nil || phone == "" {
		if err != nil {
			logger.WarnContext(ctx, "phone lookup failed",
				zap.String("user_id", n.UserID.String()),
				zap.Error(err),
			)
		}
		return
	}

	if _, err := s.sms.SendSMS(ctx, phone, n.Title+": "+n.Body); err != nil {
		logger.WarnContext(ctx, "SMS delivery failed",
			zap.String("user_id", n.UserID.String()),
			zap.String("type", n.Type),
			zap.Error(err),
		)
	}
}

func (s *Service) deliverPush(ctx context.Context, n *models.Notification) {
	if s.push == nil {
		return
	}

	tokens, err := s.repo.ListDeviceTokens(ctx, n.UserID)
	if err != nil {
		logger.WarnContext(ctx, "device token lookup failed",
			zap.String("user_id", n.UserID.String()),
			zap.Error(err),
		)
		return
	}

	data := map[string]string{"type": n.Type}
	if n.RideID != nil {
		data["ride_id"] = n.RideID.String()
	}

	for _, token := range tokens {
		if _, err := s.push.SendPush(ctx, token, n.Title, n.Body, data); err != nil {
			logger.WarnContext(ctx, "push delivery failed",
				zap.String("user_id", n.UserID.String()),
				zap.String("type", n.Type),
				zap.Error(err),
			)
		}
	}
}
