package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Sunnyio/attendanceManager/internal/apperror"
	"github.com/Sunnyio/attendanceManager/internal/attendance"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// AttendanceService is the attendance store as seen by the HTTP layer.
type AttendanceService interface {
	Add(ctx context.Context, entry attendance.Entry) (attendance.Ack, error)
	Update(ctx context.Context, entry attendance.Entry) (attendance.Ack, error)
	Trends(ctx context.Context) (attendance.Trends, error)
	ByEmployee(ctx context.Context, employeeID int64) ([]attendance.Record, error)
}

// InsightsService produces insights text for an optional user query.
type InsightsService interface {
	Insights(ctx context.Context, query string) (string, error)
}

// VersionInfo holds application version information
type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	attendance AttendanceService
	insights   InsightsService
	version    VersionInfo
}

func New(attendanceSvc AttendanceService, insightsSvc InsightsService, version VersionInfo) *Handlers {
	return &Handlers{
		attendance: attendanceSvc,
		insights:   insightsSvc,
		version:    version,
	}
}

type errorResponse struct {
	Detail string                `json:"detail"`
	Errors []apperror.FieldError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, errorResponse{Detail: message})
}

// writeError maps a core error to its HTTP status. Internal details are
// logged, never returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		log.Debug().Str("path", r.URL.Path).Msg("Client went away")
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		jsonError(w, "Request timed out", http.StatusGatewayTimeout)
		return
	}

	var appErr *apperror.Error
	message := ""
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	switch apperror.KindOf(err) {
	case apperror.KindValidation:
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Detail: message,
			Errors: apperror.FieldsOf(err),
		})
	case apperror.KindNotFound:
		jsonError(w, message, http.StatusNotFound)
	case apperror.KindConflict:
		jsonError(w, message, http.StatusConflict)
	case apperror.KindTransient, apperror.KindPoolCreation:
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("Storage unavailable")
		jsonError(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		jsonError(w, "An unexpected error occurred", http.StatusInternalServerError)
	}
}

// decodeJSON reads r's body into v. An empty body decodes as {} when
// allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	if allowEmpty && errors.Is(err, io.EOF) {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		writeError(w, r, apperror.Validation(apperror.FieldError{
			Field:  typeErr.Field,
			Reason: "must be of type " + typeErr.Type.String(),
		}))
		return false
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		jsonError(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return false
	}

	jsonError(w, "Invalid request body", http.StatusBadRequest)
	return false
}
