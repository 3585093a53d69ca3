package mailer

import (
	"bytes"
	"html/template"
	"time"
)

// QRInvite holds the values rendered into a participant's QR code email.
type QRInvite struct {
	FullName      string
	EventName     string
	EventDate     time.Time
	EventLocation string
	QRDataURL     template.URL
}

var qrEmail = template.Must(template.New("qr").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.EventName}} - QR Code</title></head>
<body style="margin:0;padding:0;font-family:Arial,sans-serif;">
  <div style="max-width:600px;margin:0 auto;padding:15px;color:#333333;">
    <h1 style="text-align:center;color:#4a5568;font-size:24px;">Event Attendance QR Code</h1>
    <p>Hello <strong>{{.FullName}}</strong>,</p>
    <p>Thank you for registering for <strong>{{.EventName}}</strong>. Your QR code for attendance is below.</p>
    <div style="text-align:center;margin:20px 0;">
      <p style="font-size:14px;color:#718096;">Please present this QR code at the event entrance:</p>
      <img src="{{.QRDataURL}}" alt="QR Code" style="max-width:200px;height:auto;" />
    </div>
    <table style="width:100%;font-size:15px;">
      <tr><td style="color:#718096;width:100px;">Event:</td><td>{{.EventName}}</td></tr>
      <tr><td style="color:#718096;">Date:</td><td>{{.EventDate.Format "January 2, 2006 3:04 PM"}}</td></tr>
      <tr><td style="color:#718096;">Location:</td><td>{{.EventLocation}}</td></tr>
    </table>
    <p>Please arrive at least 15 minutes before the event starts. Your QR code will be scanned at the entrance to record your attendance.</p>
    <p style="text-align:center;color:#718096;font-size:14px;">&copy; {{.EventDate.Year}} {{.EventName}}</p>
  </div>
</body>
</html>`))

// RenderQRInvite builds the HTML body for a QR code email.
func RenderQRInvite(in QRInvite) (string, error) {
	var buf bytes.Buffer
	if err := qrEmail.Execute(&buf, in); err != nil {
		return "", err
	}
	return buf.String(), nil
}
