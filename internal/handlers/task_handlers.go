package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"taskBoard/internal/board"
	"taskBoard/internal/handlers/dto"
	"taskBoard/internal/logger"
	"taskBoard/internal/middleware"
	"taskBoard/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService TaskService
}

func NewTaskHandler(taskService TaskService) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
	}
}

func (s *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	if err := s.TaskService.HealthCheck(r.Context()); err != nil {
		logger.Warn("HTTP: Хранилище недоступно", zap.Error(err))
		responseWithJSON(w, http.StatusServiceUnavailable,
			toPayload("status", "unavailable"),
			toPayload("error", err.Error()))
		return
	}
	responseWithJSON(w, http.StatusOK,
		toPayload("status", "ok"),
		toPayload("time", time.Now().UTC()))
}

func (s *TaskHandler) GetActiveTasks(w http.ResponseWriter, r *http.Request) {
	s.listTasks(w, r, board.ScopeActive)
}

func (s *TaskHandler) GetAllTasks(w http.ResponseWriter, r *http.Request) {
	s.listTasks(w, r, board.ScopeAll)
}

func (s *TaskHandler) GetArchivedTasks(w http.ResponseWriter, r *http.Request) {
	s.listTasks(w, r, board.ScopeArchived)
}

func (s *TaskHandler) listTasks(w http.ResponseWriter, r *http.Request, scope board.Scope) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	f, err := parseFilter(r, scope)
	if err != nil {
		logger.Warn("HTTP: Неверный фильтр",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks := s.TaskService.Tasks(f)

	logger.Info("HTTP_OUT: Задачи получены",
		zap.String("scope", string(scope)),
		zap.Int("count", len(tasks)),
		zap.Duration("ms", time.Since(start)))

	responseWithData(w, http.StatusOK, dto.FromTaskList(tasks))
}

func (s *TaskHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	f, err := parseFilter(r, board.ScopeActive)
	if err != nil {
		responseWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	responseWithData(w, http.StatusOK, s.TaskService.Columns(f))
}

func (s *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := s.TaskService.GetTask(id)
	if err != nil {
		handleServiceError(w, r, err, "get_task")
		return
	}
	responseWithData(w, http.StatusOK, t)
}

func (s *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.SaveTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	logger.Info("HTTP: Вызов сервиса создания задачи")
	out, err := s.TaskService.SaveTask(r.Context(), request.ToDraft(""))
	if err != nil {
		handleServiceError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: Задача создана",
		zap.String("task_id", out.Task.ID),
		zap.Bool("warning", out.Warning != nil),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithData(w, http.StatusCreated, dto.FromOutcome(out.Task, out.Warning))
}

func (s *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var request dto.SaveTaskRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	out, err := s.TaskService.SaveTask(r.Context(), request.ToDraft(id))
	if err != nil {
		handleServiceError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: Задача обновлена",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithData(w, http.StatusOK, dto.FromOutcome(out.Task, out.Warning))
}

func (s *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	removed, err := s.TaskService.DeleteTask(r.Context(), id)
	if err != nil {
		// задача уже снята с доски, клиенту нужна копия для отмены
		var businessErr *service.BusinessError
		if errors.As(err, &businessErr) && businessErr.Code == service.CodeRemoteWrite && removed.ID != "" {
			logger.Warn("HTTP: Удаление не сохранено", zap.String("task_id", id), zap.Error(err))
			details := make(map[string]any, len(businessErr.Details)+1)
			for k, v := range businessErr.Details {
				details[k] = v
			}
			details["task"] = removed
			responseWithJSON(w, http.StatusBadGateway,
				toPayload("error", businessErr.Code),
				toPayload("message", businessErr.Message),
				toPayload("details", details),
			)
			return
		}
		handleServiceError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: Задача удалена",
		zap.String("task_id", id),
		zap.Duration("ms", time.Since(start)))

	responseWithData(w, http.StatusOK, dto.FromOutcome(removed, nil))
}

func (s *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := s.TaskService.ToggleCompleted(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err, "toggle_task")
		return
	}
	responseWithData(w, http.StatusOK, dto.FromOutcome(t, nil))
}

func (s *TaskHandler) ArchiveTask(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, true)
}

func (s *TaskHandler) UnarchiveTask(w http.ResponseWriter, r *http.Request) {
	s.setArchived(w, r, false)
}

func (s *TaskHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := s.TaskService.SetArchived(r.Context(), id, archived)
	if err != nil {
		handleServiceError(w, r, err, "archive_task")
		return
	}
	responseWithData(w, http.StatusOK, dto.FromOutcome(t, nil))
}

func (s *TaskHandler) ClaimTask(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	out, err := s.TaskService.ClaimTask(r.Context(), id, middleware.GetUserName(r.Context()))
	if err != nil {
		handleServiceError(w, r, err, "claim_task")
		return
	}
	responseWithData(w, http.StatusOK, dto.FromOutcome(out.Task, out.Warning))
}

func (s *TaskHandler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var request dto.BatchUpdateRequest
	if !decodeJSON(w, r, &request) {
		return
	}

	updated, err := s.TaskService.BatchUpdate(r.Context(), request.IDs, request.ToPatch())
	if err != nil {
		handleServiceError(w, r, err, "batch_update")
		return
	}

	logger.Info("HTTP_OUT: Пакетное обновление",
		zap.Int("requested", len(request.IDs)),
		zap.Int("updated", len(updated)),
		zap.Duration("ms", time.Since(start)))

	responseWithData(w, http.StatusOK, dto.FromTaskList(updated))
}

func (s *TaskHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	identities, err := s.TaskService.ListIdentities(r.Context())
	if err != nil {
		handleServiceError(w, r, err, "list_identities")
		return
	}
	responseWithJSON(w, http.StatusOK,
		toPayload("identities", identities),
		toPayload("count", len(identities)))
}

func taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		logger.Warn("HTTP: Неверное значение id",
			zap.String("error", "empty id"),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "id не может быть пустым")
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: Неверный тип контента",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type должен быть application/json")
		return false
	}

	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		logger.Warn("HTTP: Ошибка чтения JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверное тело запроса: "+err.Error())
		return false
	}
	return true
}
