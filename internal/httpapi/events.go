package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"evently/internal/attendance"
)

func (h *Handler) CreateEvent(c *gin.Context) {
	var in attendance.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	ev, schedules, err := h.svc.CreateEvent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "Event created successfully", gin.H{"event": ev, "schedules": schedules})
}

func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.svc.ListEvents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Events retrieved successfully", events)
}

func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.svc.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Event retrieved successfully", ev)
}

func (h *Handler) DeleteEvent(c *gin.Context) {
	if err := h.svc.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Event deleted successfully", nil)
}

func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.Dashboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Dashboard retrieved successfully", d)
}

func (h *Handler) Schedules(c *gin.Context) {
	s, err := h.svc.Schedules(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Schedules retrieved successfully", s)
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	day, err := attendance.ParseDay(c.Param("day"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var in attendance.ScheduleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	s, err := h.svc.UpdateSchedule(c.Request.Context(), c.Param("id"), day, in)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, "Schedule updated successfully", s)
}
