package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/muhammedrifadkp/CDC-Attendance-sub003/pkg/logger"
	"go.uber.org/zap"
)

// Response is the envelope of every JSON reply.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

// SuccessMessage is a 200 whose message is meant for the end user.
func SuccessMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func ErrorWithData(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	InternalServerError(c)
}

// HandleError converts a service error to its HTTP status. Unknown errors are
// logged and answered with a generic 500.
func HandleError(c *gin.Context, err error) {
	var validation *ValidationError
	var locked *LockedError

	switch {
	case errors.As(err, &validation):
		BadRequest(c, validation.Message)
	case errors.As(err, &locked):
		ErrorWithData(c, http.StatusLocked, locked.Error(), gin.H{"remainingMinutes": locked.RemainingMinutes})
	case errors.Is(err, ErrInvalidOTP):
		BadRequest(c, "Invalid or expired OTP")
	case errors.Is(err, ErrInvalidResetToken):
		BadRequest(c, "Invalid or expired reset token")
	case errors.Is(err, ErrIncorrectPassword):
		Error(c, http.StatusUnauthorized, "Current password is incorrect")
	case errors.Is(err, ErrInvalidCredentials):
		Error(c, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, ErrInvalidRefreshToken):
		Error(c, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, ErrAccountInactive):
		Error(c, http.StatusForbidden, "Account is inactive. Please contact the administrator.")
	case errors.Is(err, ErrForbidden):
		Forbidden(c)
	case errors.Is(err, ErrUserNotFound):
		Error(c, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrDepartmentNotFound):
		Error(c, http.StatusNotFound, "Department not found")
	case errors.Is(err, ErrNotFound):
		NotFound(c)
	case errors.Is(err, ErrEmailTaken):
		BadRequest(c, "User with this email already exists")
	case errors.Is(err, ErrEmployeeIDTaken):
		BadRequest(c, "Employee ID already exists")
	case errors.Is(err, ErrConflict):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrDepartmentCodeUnknown):
		BadRequest(c, "Unknown department")
	case errors.Is(err, ErrEmployeeIDExhausted):
		Error(c, http.StatusConflict, "No employee IDs left for this department")
	case errors.Is(err, ErrTooManyRequests):
		Error(c, http.StatusTooManyRequests, "Too many requests, please try again later")
	default:
		LogInternalError(c, err)
	}
}
