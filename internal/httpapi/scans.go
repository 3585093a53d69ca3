package httpapi

import (
	"errors"

	"github.com/gin-gonic/gin"

	"evently/internal/attendance"
)

// scanRequest carries either the signed QR token or explicit ids, for manual
// entry by staff.
type scanRequest struct {
	Token         string `json:"token"`
	EventID       string `json:"event_id"`
	ParticipantID string `json:"participant_id"`
}

func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	eventID, participantID := req.EventID, req.ParticipantID
	if req.Token != "" {
		claims, err := h.signer.Parse(req.Token)
		if err != nil {
			h.countScan("invalid_token")
			h.fail(c, err)
			return
		}
		eventID, participantID = claims.EventID, claims.ParticipantID
	}
	if eventID == "" || participantID == "" {
		badRequest(c, errors.New("token or event_id and participant_id are required"))
		return
	}

	res, err := h.svc.Scan(c.Request.Context(), eventID, participantID, h.now())
	if err != nil {
		h.countScan(scanOutcome(err))
		h.fail(c, err)
		return
	}
	switch {
	case res.Duplicate:
		h.countScan("duplicate")
		ok(c, "Scan already recorded", res)
	default:
		h.countScan(res.Checkpoint)
		ok(c, "Attendance recorded successfully", res)
	}
}

func scanOutcome(err error) string {
	switch {
	case errors.Is(err, attendance.ErrOutsideEvent):
		return "outside_event"
	case errors.Is(err, attendance.ErrAlreadyComplete):
		return "already_complete"
	case errors.Is(err, attendance.ErrScanInProgress):
		return "in_progress"
	case errors.Is(err, attendance.ErrEventNotFound), errors.Is(err, attendance.ErrParticipantNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (h *Handler) countScan(outcome string) {
	if h.metrics != nil {
		h.metrics.Scans.WithLabelValues(outcome).Inc()
	}
}

// Attendance returns the joined scan view, optionally filtered by ?day=N.
func (h *Handler) Attendance(c *gin.Context) {
	day, err := optionalDay(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	rows, err := h.svc.Attendance(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Attendance retrieved successfully", rows)
}

func optionalDay(c *gin.Context) (*int, error) {
	raw, present := c.GetQuery("day")
	if !present {
		return nil, nil
	}
	n, err := attendance.ParseDay(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
