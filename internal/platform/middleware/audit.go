package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medsched/scheduler/internal/platform/auth"
)

// AuditEntry records who changed which appointment and how it went.
type AuditEntry struct {
	UserID        string
	UserRoles     []string
	DoctorID      string
	AppointmentID string
	Action        string
	Method        string
	Path          string
	IPAddress     string
	RequestID     string
	StatusCode    int
	Timestamp     time.Time
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every state-changing request under /api/v1 with the caller's
// identity and the appointment it touched. Reads are not audited.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method == http.MethodGet || req.Method == http.MethodHead || !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			appointmentID, action := auditTarget(req.URL.Path)
			entry := AuditEntry{
				UserID:        auth.UserIDFromContext(ctx),
				UserRoles:     auth.RolesFromContext(ctx),
				DoctorID:      auth.DoctorIDFromContext(ctx),
				AppointmentID: appointmentID,
				Action:        action,
				Method:        req.Method,
				Path:          req.URL.Path,
				IPAddress:     c.RealIP(),
				RequestID:     requestID(c),
				StatusCode:    c.Response().Status,
				Timestamp:     time.Now().UTC(),
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("doctor_id", entry.DoctorID).
				Str("appointment_id", entry.AppointmentID).
				Str("action", entry.Action).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("appointment_write")

			return err
		}
	}
}

// auditTarget extracts the appointment id and action from paths such as
//
//	/api/v1/appointments                 -> "", create
//	/api/v1/appointments/<id>/cancel     -> <id>, cancel
//	/api/v1/booking/submit               -> "", booking.submit
func auditTarget(path string) (appointmentID, action string) {
	segs := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api/v1/"), "/"), "/")
	switch {
	case len(segs) == 0 || segs[0] == "":
		return "", "unknown"
	case segs[0] == "appointments" && len(segs) == 1:
		return "", "create"
	case segs[0] == "appointments" && len(segs) >= 3:
		if _, err := uuid.Parse(segs[1]); err == nil {
			return segs[1], segs[2]
		}
		return "", segs[2]
	}
	return "", strings.Join(segs, ".")
}
