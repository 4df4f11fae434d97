package tenant

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTenantProvisionWorkspace = "tenant:provision:workspace"
	TaskTenantProvisionDirectory = "tenant:provision:directory"
	TaskTenantPostSetup          = "tenant:post-setup"
)

type ProvisionPayload struct {
	TenantID string `json:"tenant_id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Domain   string `json:"domain"`
}

func NewProvisionTasks(p ProvisionPayload) []*asynq.Task {
	payload, _ := json.Marshal(p)
	return []*asynq.Task{
		asynq.NewTask(TaskTenantProvisionWorkspace, payload,
			asynq.MaxRetry(3),
			asynq.Timeout(60*time.Second),
			asynq.Queue("provisioning")),
		asynq.NewTask(TaskTenantProvisionDirectory, payload,
			asynq.MaxRetry(3),
			asynq.Queue("provisioning")),
		asynq.NewTask(TaskTenantPostSetup, payload,
			asynq.Queue("provisioning")),
	}
}
