// Package server exposes the task API over HTTP using Gin.
//
// Routes:
//
//	GET    /api/tasks              list tasks, newest first
//	POST   /api/tasks              create a task and start its pipeline
//	GET    /api/tasks/:id          fetch one task
//	PATCH  /api/tasks/:id          rename a task
//	DELETE /api/tasks/:id          cancel any run and delete the task
//	POST   /api/tasks/:id/retry    resume a failed task at its failed step
//	POST   /api/tasks/:id/restart  run the whole pipeline again
//	GET    /api/events             server-sent task events (?task_id= filters)
//	GET    /healthz                aggregated component health
//
// Middleware (server/middleware) runs at the net/http level: panic
// recovery, request ids, CORS, body-size limits and request logging.
package server
