package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/service"
	"github.com/JojayD/codecanvas-sub000/internal/tasks"
)

// WorkerServer wraps the asynq server lifecycle and handler registry.
type WorkerServer struct {
	server      *asynq.Server
	log         *logrus.Entry
	wbService   *service.WhiteboardService
	roomService *service.RoomService
	roomIdleTTL time.Duration
}

// NewWorkerServer creates the worker.
func NewWorkerServer(redisOpt asynq.RedisClientOpt, wbService *service.WhiteboardService, roomService *service.RoomService, roomIdleTTL time.Duration, logger *logrus.Logger) *WorkerServer {
	if wbService == nil {
		panic("WhiteboardService cannot be nil for WorkerServer")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WorkerServer")
	}
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server:      server,
		log:         logEntry,
		wbService:   wbService,
		roomService: roomService,
		roomIdleTTL: roomIdleTTL,
	}
}

// Start runs the worker. Call it in its own goroutine.
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeWhiteboardPersist, NewWhiteboardPersistHandler(ws.wbService).ProcessTask)
	mux.HandleFunc(tasks.TypeRoomSweep, NewRoomSweepHandler(ws.roomService, ws.roomIdleTTL).ProcessTask)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped.")
		}
	}
}

// Shutdown stops the worker gracefully.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
