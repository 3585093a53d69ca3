package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"evently/internal/attendance"
)

type registerRequest struct {
	Participants []attendance.ParticipantInput `json:"participants" binding:"required"`
}

// RegisterParticipants creates one or many participants. Near-duplicate names
// are reported alongside the created rows.
func (h *Handler) RegisterParticipants(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.svc.RegisterParticipants(c.Request.Context(), c.Param("id"), req.Participants)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := "Participants registered successfully"
	if len(res.Duplicates) > 0 {
		msg = "Participants registered with possible duplicates"
	}
	respond(c, http.StatusCreated, msg, res)
}

func (h *Handler) Participants(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.svc.GetEvent(ctx, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	ps, err := h.svc.Participants(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Participants retrieved successfully", ps)
}

func (h *Handler) UpdateParticipant(c *gin.Context) {
	var in attendance.ParticipantInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.UpdateParticipant(c.Request.Context(), c.Param("pid"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Participant updated successfully", p)
}

func (h *Handler) DeleteParticipant(c *gin.Context) {
	if err := h.svc.DeleteParticipant(c.Request.Context(), c.Param("pid")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Participant deleted successfully", nil)
}
