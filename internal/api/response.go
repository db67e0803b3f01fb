package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shaiso/Fabrika/internal/repo"
	"github.com/shaiso/Fabrika/internal/workflow"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeSequence      ErrorCode = "SEQUENCE_VIOLATION"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeEmptyOutput   ErrorCode = "EMPTY_OUTPUT"
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total,omitempty"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// Created отправляет ответ о создании ресурса.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, DataResponse{Data: data})
}

// NoContent отправляет ответ без тела (204).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest отправляет ошибку 400.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// NotFound отправляет ошибку 404.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// Forbidden отправляет ошибку 403.
func Forbidden(w http.ResponseWriter, message string) {
	Error(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// Conflict отправляет ошибку 409.
func Conflict(w http.ResponseWriter, code ErrorCode, message string) {
	Error(w, http.StatusConflict, code, message)
}

// Unprocessable отправляет ошибку 422.
func Unprocessable(w http.ResponseWriter, code ErrorCode, message string) {
	Error(w, http.StatusUnprocessableEntity, code, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleWorkflowError преобразует ошибку engine в HTTP ответ.
// Возвращает true, если ответ отправлен.
func HandleWorkflowError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, workflow.ErrNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, workflow.ErrValidation):
		BadRequest(w, err.Error())
	case errors.Is(err, workflow.ErrForbidden):
		Forbidden(w, err.Error())
	case errors.Is(err, workflow.ErrSequence):
		Conflict(w, ErrCodeSequence, err.Error())
	case errors.Is(err, workflow.ErrConflict):
		Conflict(w, ErrCodeConflict, err.Error())
	case errors.Is(err, workflow.ErrInvalidState):
		Unprocessable(w, ErrCodeInvalidState, err.Error())
	case errors.Is(err, workflow.ErrEmptyOutput):
		Unprocessable(w, ErrCodeEmptyOutput, err.Error())
	default:
		InternalError(w, logger, err)
	}

	return true
}

// HandleRepoError преобразует ошибку репозитория в HTTP ответ.
// Используется обработчиками справочника, которые ходят в repo напрямую.
func HandleRepoError(w http.ResponseWriter, logger *slog.Logger, err error, notFoundMsg string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, repo.ErrNotFound):
		NotFound(w, notFoundMsg)
	case errors.Is(err, repo.ErrAlreadyExists):
		Conflict(w, ErrCodeConflict, err.Error())
	case errors.Is(err, repo.ErrInvalidState):
		Unprocessable(w, ErrCodeInvalidState, err.Error())
	default:
		InternalError(w, logger, err)
	}

	return true
}
