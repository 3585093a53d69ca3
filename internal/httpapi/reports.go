package httpapi

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"evently/internal/attendance"
	"evently/internal/export"
	"evently/internal/queue"
)

var errFormat = fmt.Errorf("%w: format must be one of json, pdf, xlsx", attendance.ErrValidation)

func attachment(c *gin.Context, contentType, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, contentType, body)
}

func (h *Handler) countReport(kind, format string) {
	if h.metrics != nil {
		h.metrics.Reports.WithLabelValues(kind, format).Inc()
	}
}

// FullReport renders the whole-event report as JSON, PDF or XLSX.
func (h *Handler) FullReport(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "pdf" && format != "xlsx" {
		h.fail(c, errFormat)
		return
	}
	rep, err := h.svc.EventReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	var body []byte
	switch format {
	case "json":
		h.countReport("full", format)
		ok(c, "Report generated successfully", rep)
		return
	case "pdf":
		body, err = export.FullReportPDF(rep)
	case "xlsx":
		body, err = export.FullReportXLSX(rep)
	}
	if err != nil {
		h.fail(c, fmt.Errorf("render full report: %w", err))
		return
	}
	h.countReport("full", format)
	contentType := export.ContentTypePDF
	if format == "xlsx" {
		contentType = export.ContentTypeXLSX
	}
	attachment(c, contentType, export.Filename(rep.Event.EventName, "full-report", format), body)
}

// DailyReport renders one day. Without ?day the current event day is used.
func (h *Handler) DailyReport(c *gin.Context) {
	format := c.DefaultQuery("format", "json")
	if format != "json" && format != "pdf" {
		h.fail(c, fmt.Errorf("%w: format must be json or pdf", attendance.ErrValidation))
		return
	}
	day, err := optionalDay(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	rep, err := h.svc.DailyReport(ctx, c.Param("id"), day)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.countReport("daily", format)
	if format == "json" {
		ok(c, "Daily report generated successfully", rep)
		return
	}

	ev, err := h.svc.GetEvent(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	body, err := export.DailyReportPDF(ev, rep)
	if err != nil {
		h.fail(c, fmt.Errorf("render daily report: %w", err))
		return
	}
	kind := fmt.Sprintf("day-%d-report", rep.Summary.Day)
	attachment(c, export.ContentTypePDF, export.Filename(ev.EventName, kind, "pdf"), body)
}

// QRCodesPDF renders a printable sheet with one QR code per participant.
func (h *Handler) QRCodesPDF(c *gin.Context) {
	ctx := c.Request.Context()
	ev, err := h.svc.GetEvent(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ps, err := h.svc.Participants(ctx, ev.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	cells, err := export.QRCells(h.signer, ps)
	if err != nil {
		h.fail(c, err)
		return
	}
	body, err := export.QRSheetPDF(ev, cells)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.countReport("qr_codes", "pdf")
	attachment(c, export.ContentTypePDF, export.Filename(ev.EventName, "qr-codes", "pdf"), body)
}

type sendQRRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
}

// SendQRCodes queues a background job that emails every selected participant
// their QR code. The body is optional.
func (h *Handler) SendQRCodes(c *gin.Context) {
	var req sendQRRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	ctx := c.Request.Context()
	ev, err := h.svc.GetEvent(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ps, err := h.svc.Participants(ctx, ev.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(ps) == 0 {
		h.fail(c, attendance.ErrNoParticipants)
		return
	}
	recipients := 0
	for _, p := range ps {
		if p.Email == nil || *p.Email == "" {
			continue
		}
		if len(req.ParticipantIDs) > 0 && !slices.Contains(req.ParticipantIDs, p.ID) {
			continue
		}
		recipients++
	}

	job, err := queue.NewJob(queue.JobSendQRCodes, queue.SendQRCodesPayload{EventID: ev.ID, ParticipantIDs: req.ParticipantIDs})
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.queue.Publish(ctx, job); err != nil {
		h.fail(c, fmt.Errorf("enqueue qr email job: %w", err))
		return
	}
	respond(c, http.StatusAccepted, "QR code emails are being sent", gin.H{"job_id": job.ID, "recipients": recipients})
}
