package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JojayD/codecanvas-sub000/internal/service"
)

// HandleServiceError maps business errors onto HTTP responses. Anything
// unrecognized is an internal error and gets logged here.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		ErrorResponse(c, http.StatusNotFound, "Room not found")
	case errors.Is(err, service.ErrUserNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrRoomClosed),
		errors.Is(err, service.ErrRoomFull):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrCloseNotPermitted):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAuthenticationFailed):
		ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrRegistrationFailed):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
