package services

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/studyhub-backend/internal/domain"
	"github.com/yungbote/studyhub-backend/internal/realtime"
)

type JobNotifier interface {
	JobCreated(userID uuid.UUID, job *types.JobRun)
	JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string)
	JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID uuid.UUID, job *types.JobRun)
}

type jobNotifier struct {
	publisher realtime.Publisher
}

func NewJobNotifier(publisher realtime.Publisher) JobNotifier {
	if publisher == nil {
		publisher = realtime.NopPublisher()
	}
	return &jobNotifier{publisher: publisher}
}

func (n *jobNotifier) send(userID uuid.UUID, job *types.JobRun, data map[string]any) {
	if job == nil || userID == uuid.Nil {
		return
	}
	data["job_id"] = job.ID
	data["job_type"] = job.JobType
	data["status"] = job.Status
	n.publisher.Publish(context.Background(), realtime.SSEMessage{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.SSEEventJobStatus,
		Data:    data,
	})
}

func (n *jobNotifier) JobCreated(userID uuid.UUID, job *types.JobRun) {
	n.send(userID, job, map[string]any{"stage": job.Stage})
}

func (n *jobNotifier) JobProgress(userID uuid.UUID, job *types.JobRun, stage string, progress int, message string) {
	n.send(userID, job, map[string]any{
		"stage":    stage,
		"progress": progress,
		"message":  message,
	})
}

func (n *jobNotifier) JobFailed(userID uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.send(userID, job, map[string]any{
		"stage": stage,
		"error": errorMessage,
	})
}

func (n *jobNotifier) JobDone(userID uuid.UUID, job *types.JobRun) {
	n.send(userID, job, map[string]any{
		"stage":  job.Stage,
		"result": job.Result,
	})
}
