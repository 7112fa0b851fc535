package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Sunnyio/attendanceManager/internal/apperror"
	"github.com/Sunnyio/attendanceManager/internal/attendance"
)

const noAttendanceMessage = "No attendance found for employee"

type entryRequest struct {
	EmployeeID *int64  `json:"employee_id"`
	Date       *string `json:"date"`
	Status     *string `json:"status"`
	Department *string `json:"department"`
}

// entry validates the request. Missing fields are reported alongside any
// other field problems.
func (req entryRequest) entry() (attendance.Entry, error) {
	var missing []apperror.FieldError
	required := func(field string, present bool) {
		if !present {
			missing = append(missing, apperror.FieldError{Field: field, Reason: "field required"})
		}
	}
	required("employee_id", req.EmployeeID != nil)
	required("date", req.Date != nil)
	required("status", req.Status != nil)
	required("department", req.Department != nil)

	entry, err := attendance.NewEntry(deref(req.EmployeeID), deref(req.Date), deref(req.Status), deref(req.Department))
	if len(missing) == 0 {
		return entry, err
	}

	fields := missing
	for _, f := range apperror.FieldsOf(err) {
		if !hasField(missing, f.Field) {
			fields = append(fields, f)
		}
	}
	return attendance.Entry{}, apperror.Validation(fields...)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func hasField(fields []apperror.FieldError, name string) bool {
	for _, f := range fields {
		if f.Field == name {
			return true
		}
	}
	return false
}

func (h *Handlers) decodeEntry(w http.ResponseWriter, r *http.Request) (attendance.Entry, bool) {
	var req entryRequest
	if !decodeJSON(w, r, &req, false) {
		return attendance.Entry{}, false
	}

	entry, err := req.entry()
	if err != nil {
		writeError(w, r, err)
		return attendance.Entry{}, false
	}
	return entry, true
}

// AddAttendance handles POST /attendance/
func (h *Handlers) AddAttendance(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}

	ack, err := h.attendance.Add(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// UpdateAttendance handles PUT /attendance/
func (h *Handlers) UpdateAttendance(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.decodeEntry(w, r)
	if !ok {
		return
	}

	ack, err := h.attendance.Update(r.Context(), entry)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// AttendanceTrends handles GET /attendance/trends
func (h *Handlers) AttendanceTrends(w http.ResponseWriter, r *http.Request) {
	trends, err := h.attendance.Trends(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendance_trends": trends})
}

// EmployeeAttendance handles GET /attendance/{employeeID}
func (h *Handlers) EmployeeAttendance(w http.ResponseWriter, r *http.Request) {
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		writeError(w, r, apperror.Validation(apperror.FieldError{
			Field:  "employee_id",
			Reason: "must be an integer",
		}))
		return
	}

	records, err := h.attendance.ByEmployee(r.Context(), employeeID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if len(records) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": noAttendanceMessage})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attendance": records})
}
