package api

import (
	"errors"
	"net/http"
)

type AppError struct {
	Code    int    `json:"-"`
	Message string `json:"error"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrBadRequest       = &AppError{Code: http.StatusBadRequest, Message: "bad request"}
	ErrUserNotSpecified = &AppError{Code: http.StatusBadRequest, Message: "user is not specified"}
	ErrUnauthorized     = &AppError{Code: http.StatusUnauthorized, Message: "unauthorized"}
	ErrForbidden        = &AppError{Code: http.StatusForbidden, Message: "forbidden"}
	ErrNotFound         = &AppError{Code: http.StatusNotFound, Message: "not found"}
	ErrInternalServer   = &AppError{Code: http.StatusInternalServerError, Message: "internal server error"}
)

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func NewUnauthorizedError(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func NewForbiddenError(msg string) *AppError {
	return &AppError{Code: http.StatusForbidden, Message: msg}
}

func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg}
}

func HandleError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONErrorMessage(w, appErr.Code, appErr.Message)
		return
	}
	JSONErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
