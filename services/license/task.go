package license

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TaskLicenseExpiryScan    = "license:expiry:scan"
	TaskLicenseRenewalNotice = "license:renewal:notice"

	// grants expiring within this horizon get a renewal notice
	expiryHorizon = 30 * 24 * time.Hour
)

type RenewalNoticePayload struct {
	TenantID  string    `json:"tenant_id"`
	ModuleKey string    `json:"module_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewRenewalNoticeTask(p RenewalNoticePayload) *asynq.Task {
	payload, _ := json.Marshal(p)
	return asynq.NewTask(TaskLicenseRenewalNotice, payload,
		asynq.MaxRetry(3),
		asynq.Queue("low"))
}

// HandleExpiryScan walks active licenses and enqueues a renewal notice for
// every grant expiring within the horizon.
func (s *Service) HandleExpiryScan(ctx context.Context, t *asynq.Task) error {
	expiring, err := s.repo.FindExpiring(ctx, expiryHorizon)
	if err != nil {
		zap.L().Error("expiry scan failed", zap.Error(err))
		return err
	}

	for _, g := range expiring {
		task := NewRenewalNoticeTask(RenewalNoticePayload{
			TenantID:  g.TenantID,
			ModuleKey: g.ModuleKey,
			ExpiresAt: g.ExpiresAt,
		})
		if _, err := s.asynq.Enqueue(task); err != nil {
			zap.L().Error("failed enqueue renewal notice",
				zap.String("tenant_id", g.TenantID),
				zap.String("module_key", g.ModuleKey),
				zap.Error(err))
			return err
		}
	}

	zap.L().Info("expiry scan finished", zap.Int("expiring_grants", len(expiring)))
	return nil
}

// HandleRenewalNotice records the notice. Delivery (email, in-app) is owned by
// the notification platform; this handler is its integration point.
func (s *Service) HandleRenewalNotice(ctx context.Context, t *asynq.Task) error {
	var p RenewalNoticePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("license renewal notice",
		zap.String("tenant_id", p.TenantID),
		zap.String("module_key", p.ModuleKey),
		zap.Time("expires_at", p.ExpiresAt))
	return nil
}
