package license

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"hrplane/internal/config"
	"hrplane/services/testutil"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return nil, nil
}

func TestHandleExpiryScanEnqueuesNotices(t *testing.T) {
	db := testutil.NewTestDB(t, &License{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Licensing.CoreModuleKey = "core-hr"

	enqueuer := &fakeEnqueuer{}
	svc := NewService(ServiceParams{DB: db, Node: node, Config: cfg, Asynq: enqueuer})

	_, err = svc.Provision(context.Background(), nil, "tenant-1", "")
	require.NoError(t, err)
	_, err = svc.EnableModule(context.Background(), "tenant-1", EnableModuleRequest{
		ModuleKey: "payroll",
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339),
	})
	require.NoError(t, err)
	_, err = svc.EnableModule(context.Background(), "tenant-1", EnableModuleRequest{
		ModuleKey: "leave", // no expiry, never noticed
	})
	require.NoError(t, err)

	err = svc.HandleExpiryScan(context.Background(), asynq.NewTask(TaskLicenseExpiryScan, nil))
	require.NoError(t, err)
	require.Len(t, enqueuer.tasks, 1)
	require.Equal(t, TaskLicenseRenewalNotice, enqueuer.tasks[0].Type())

	var p RenewalNoticePayload
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &p))
	require.Equal(t, "tenant-1", p.TenantID)
	require.Equal(t, "payroll", p.ModuleKey)
}

func TestHandleRenewalNotice(t *testing.T) {
	svc := &Service{}

	task := NewRenewalNoticeTask(RenewalNoticePayload{
		TenantID:  "tenant-1",
		ModuleKey: "payroll",
		ExpiresAt: time.Now(),
	})
	require.NoError(t, svc.HandleRenewalNotice(context.Background(), task))

	bad := asynq.NewTask(TaskLicenseRenewalNotice, []byte("{"))
	require.Error(t, svc.HandleRenewalNotice(context.Background(), bad))
}
