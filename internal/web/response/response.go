package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/freekieb7/go-drawer/internal/errors"
)

type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Redirect(w http.ResponseWriter, status int, url string) {
	w.Header().Set("Location", url)
	w.WriteHeader(status)
}

func JSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// ErrorResponse renders err as an error envelope. Failures of the session store,
// database or configuration are logged with their cause and answered with a
// generic 500; field validation failures list the rejected fields.
func ErrorResponse(w http.ResponseWriter, err error, logger *slog.Logger) {
	if apperrors.IsServerFault(err) {
		if logger != nil {
			logger.Error("Internal server error",
				slog.String("code", errorCode(err)),
				slog.String("error", err.Error()))
		}
		writeError(w, apperrors.InternalError("An internal error occurred", err), nil)
		return
	}

	var appErr *apperrors.AppError
	errors.As(err, &appErr)

	if appErr.Code == apperrors.CodeValidationFailed && len(appErr.Fields) > 0 {
		ValidationErrorResponse(w, appErr.Message, appErr.Fields, logger)
		return
	}

	if logger != nil {
		logger.Warn("Application error occurred",
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("cause", appErr.Error()))
	}
	writeError(w, appErr, nil)
}

// ValidationErrorResponse answers 400 with the rejected fields under data.details.
func ValidationErrorResponse(w http.ResponseWriter, message string, details map[string]string, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("Validation error",
			slog.String("message", message),
			slog.Any("details", details))
	}
	writeError(w, apperrors.ValidationError(message, nil), details)
}

func writeError(w http.ResponseWriter, appErr *apperrors.AppError, details map[string]string) {
	data := map[string]any{
		"error_code": appErr.Code,
	}
	if len(details) > 0 {
		data["details"] = details
	}

	JSONResponse(w, appErr.HTTPCode, APIResponse{
		Code:    appErr.HTTPCode,
		Status:  "error",
		Message: appErr.Message,
		Data:    data,
	})
}

func errorCode(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return apperrors.CodeInternalError
}

// SuccessResponse handles successful API responses
func SuccessResponse(w http.ResponseWriter, data any) {
	JSONResponse(w, http.StatusOK, APIResponse{
		Code:   http.StatusOK,
		Status: "success",
		Data:   data,
	})
}

// CreatedResponse answers 201 with the created resource.
func CreatedResponse(w http.ResponseWriter, data any) {
	JSONResponse(w, http.StatusCreated, APIResponse{
		Code:   http.StatusCreated,
		Status: "success",
		Data:   data,
	})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
