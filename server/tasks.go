package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/pipeline"
	"github.com/kbukum/voicememo/sse"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/taskstore"
	"github.com/kbukum/voicememo/validation"
)

// Runner starts pipeline runs. *pipeline.Orchestrator implements it.
type Runner interface {
	Start(ctx context.Context, t *task.Task, action pipeline.Action) error
	Cancel(id string) (stopped <-chan struct{}, ok bool)
	Running(id string) bool
}

// TaskAPI serves the task routes and the event stream.
type TaskAPI struct {
	store  taskstore.Store
	runner Runner
	hub    *sse.Hub
	log    *logger.Logger
}

// NewTaskAPI creates the task handlers. hub may be nil, which disables
// /api/events.
func NewTaskAPI(store taskstore.Store, runner Runner, hub *sse.Hub, log *logger.Logger) *TaskAPI {
	if log == nil {
		log = logger.Nop()
	}
	return &TaskAPI{store: store, runner: runner, hub: hub, log: log.WithComponent("api")}
}

// Register mounts the routes under r.
func (a *TaskAPI) Register(r gin.IRouter) {
	tasks := r.Group("/tasks")
	tasks.GET("", a.list)
	tasks.POST("", a.create)
	tasks.GET("/:id", a.get)
	tasks.PATCH("/:id", a.rename)
	tasks.DELETE("/:id", a.remove)
	tasks.POST("/:id/retry", a.retry)
	tasks.POST("/:id/restart", a.restart)
	if a.hub != nil {
		r.GET("/events", a.events)
	}
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	RecordingID   string `json:"recording_id" validate:"required,max=128"`
	LocalFilePath string `json:"local_file_path" validate:"required"`
	Title         string `json:"title" validate:"max=200"`
	// Start defaults to true.
	Start *bool `json:"start"`
}

// UpdateTaskRequest is the body of PATCH /api/tasks/:id.
type UpdateTaskRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// TaskView is a task as returned by the API.
type TaskView struct {
	*task.Task
	StatusLabel string `json:"status_label"`
	Running     bool   `json:"running"`
}

func (a *TaskAPI) view(t *task.Task) TaskView {
	return TaskView{Task: t, StatusLabel: t.Status.Label(), Running: a.runner.Running(t.ID)}
}

func (a *TaskAPI) list(c *gin.Context) {
	tasks, err := a.store.List(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, a.view(t))
	}
	respondTasks(c, views)
}

func (a *TaskAPI) get(c *gin.Context) {
	t, err := a.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, a.view(t))
}

func (a *TaskAPI) create(c *gin.Context) {
	var req CreateTaskRequest
	if !bind(c, &req) {
		return
	}

	t := task.New(req.RecordingID, req.LocalFilePath, req.Title)
	if err := a.store.Save(c.Request.Context(), t); err != nil {
		a.fail(c, err)
		return
	}
	a.log.Info("task created", logger.Fields(
		logger.FieldTaskID, t.ID,
		logger.FieldRecordingID, t.RecordingID,
	))

	if req.Start == nil || *req.Start {
		if err := a.runner.Start(c.Request.Context(), t.Clone(), pipeline.ActionRun); err != nil {
			a.fail(c, err)
			return
		}
	}
	respond(c, http.StatusCreated, a.view(t))
}

func (a *TaskAPI) rename(c *gin.Context) {
	var req UpdateTaskRequest
	if !bind(c, &req) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := a.store.UpdateTitle(ctx, id, req.Title); err != nil {
		a.fail(c, err)
		return
	}
	t, err := a.store.Get(ctx, id)
	if err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusOK, a.view(t))
}

func (a *TaskAPI) remove(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := a.store.Get(ctx, id); err != nil {
		a.fail(c, err)
		return
	}
	// Wait for the run's last save, or it would restore the deleted row.
	if stopped, ok := a.runner.Cancel(id); ok {
		select {
		case <-stopped:
		case <-ctx.Done():
			a.fail(c, ctx.Err())
			return
		}
		a.log.Info("run cancelled for deleted task", logger.Fields(logger.FieldTaskID, id))
	}
	if err := a.store.Delete(ctx, id); err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusNoContent, nil)
}

func (a *TaskAPI) retry(c *gin.Context) {
	a.startAction(c, pipeline.ActionRetry)
}

func (a *TaskAPI) restart(c *gin.Context) {
	a.startAction(c, pipeline.ActionRestart)
}

func (a *TaskAPI) startAction(c *gin.Context, action pipeline.Action) {
	t, err := a.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	snapshot := t.Clone()
	if err := a.runner.Start(c.Request.Context(), t, action); err != nil {
		a.fail(c, err)
		return
	}
	respond(c, http.StatusAccepted, TaskView{Task: snapshot, StatusLabel: snapshot.Status.Label(), Running: true})
}

func (a *TaskAPI) events(c *gin.Context) {
	taskID := c.Query("task_id")
	client := sse.NewClient(sse.TaskClientID(taskID, uuid.NewString()), taskID)
	a.hub.Serve(c.Writer, c.Request, client)
}

func (a *TaskAPI) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	if appErr, ok := apperrors.AsAppError(err); !ok || appErr.HTTPStatus >= 500 {
		fields := logger.Fields(
			"path", c.FullPath(),
			logger.FieldError, err.Error(),
		)
		if op := observability.OperationFrom(c.Request.Context()); op != nil {
			fields[logger.FieldRequestID] = op.RequestID
		}
		a.log.Error("request failed", fields)
	}
	respondError(c, err)
}

// bind decodes and validates the JSON body, answering 400 on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err)
		respondError(c, apperrors.InvalidInput("body", err.Error()))
		return false
	}
	if err := validation.Validate(dst); err != nil {
		_ = c.Error(err)
		respondError(c, err)
		return false
	}
	return true
}
