package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/studyhub-backend/internal/http/response"
	"github.com/yungbote/studyhub-backend/internal/platform/logger"
	"github.com/yungbote/studyhub-backend/internal/services"
)

type TaskHandler struct {
	log   *logger.Logger
	tasks services.TaskService
}

func NewTaskHandler(log *logger.Logger, tasks services.TaskService) *TaskHandler {
	return &TaskHandler{log: log.With("handler", "TaskHandler"), tasks: tasks}
}

// GET /api/tasks?completed=&subject_id=&priority=
func (h *TaskHandler) List(c *gin.Context) {
	completed, ok := queryBool(c, "completed")
	if !ok {
		return
	}
	subjectID, ok := queryUUID(c, "subject_id")
	if !ok {
		return
	}
	out, err := h.tasks.List(c.Request.Context(), services.TaskQuery{
		Completed: completed,
		SubjectID: subjectID,
		Priority:  c.Query("priority"),
	})
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"tasks": out})
}

// POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.TaskInput
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.tasks.Create(c.Request.Context(), req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondCreated(c, gin.H{"task": t})
}

// GET /api/tasks/:id
func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "invalid_task_id")
	if !ok {
		return
	}
	t, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"task": t})
}

// PATCH /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "invalid_task_id")
	if !ok {
		return
	}
	var req services.TaskPatch
	if !bindJSON(c, &req) {
		return
	}
	t, err := h.tasks.Update(c.Request.Context(), id, req)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"task": t})
}

// DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "invalid_task_id")
	if !ok {
		return
	}
	if err := h.tasks.Delete(c.Request.Context(), id); err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondNoContent(c)
}

// POST /api/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "invalid_task_id")
	if !ok {
		return
	}
	out, err := h.tasks.Complete(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/tasks/:id/reopen
func (h *TaskHandler) Reopen(c *gin.Context) {
	id, ok := pathID(c, "invalid_task_id")
	if !ok {
		return
	}
	t, err := h.tasks.Reopen(c.Request.Context(), id)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"task": t})
}
