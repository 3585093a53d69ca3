package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"evently/internal/attendance"
	"evently/internal/qr"
)

func sampleReport(t *testing.T) attendance.EventReport {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := attendance.EventDetails{
		ID:        "ev1",
		EventName: "Go Workshop",
		Location:  "Hall A",
		StartDate: start,
		EndDate:   time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC),
	}
	at := func(h int) *time.Time { v := start.Add(time.Duration(h) * time.Hour); return &v }
	ps := []attendance.Participant{
		{ID: "a", FirstName: "Ann", LastName: "Zhao"},
		{ID: "b", FirstName: "José", LastName: "Ñúñez"},
	}
	records := []attendance.Record{
		{ParticipantID: "a", Day: 1, AMTimeIn: at(8), AMTimeOut: at(12), PMTimeIn: at(13), PMTimeOut: at(17)},
	}
	rep, err := attendance.BuildEventReport(ev, ps, records, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return rep
}

func TestFullReportXLSX(t *testing.T) {
	b, err := FullReportXLSX(sampleReport(t))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Day 1 - January 1, 2024", "Day 2 - January 2, 2024", "Event Summary"}, f.GetSheetList())

	cells := map[string]string{
		"A6": "Ñúñez, José",
		"B6": "N/A",
		"F6": "Absent",
		"A7": "Zhao, Ann",
		"B7": "8:00 AM",
		"F7": "Complete Attendance",
	}
	for cell, want := range cells {
		v, err := f.GetCellValue("Day 1 - January 1, 2024", cell)
		require.NoError(t, err)
		assert.Equal(t, want, v, cell)
	}

	v, err := f.GetCellValue("Day 2 - January 2, 2024", "F6")
	require.NoError(t, err)
	assert.Equal(t, "Event is currently ongoing", v)

	v, err = f.GetCellValue("Event Summary", "B7")
	require.NoError(t, err)
	assert.Equal(t, "50.0%", v)
}

func TestPDFs(t *testing.T) {
	rep := sampleReport(t)

	full, err := FullReportPDF(rep)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(full, []byte("%PDF")))

	daily, err := DailyReportPDF(rep.Event, rep.Days[0])
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(daily, []byte("%PDF")))
}

func TestQRSheetPDF(t *testing.T) {
	png, err := qr.PNG("token", 128)
	require.NoError(t, err)

	cells := make([]QRCell, 11)
	for i := range cells {
		cells[i] = QRCell{Name: "Participant", PNG: png}
	}
	b, err := QRSheetPDF(sampleReport(t).Event, cells)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, []byte("%PDF")))

	_, err = QRSheetPDF(sampleReport(t).Event, nil)
	assert.ErrorIs(t, err, attendance.ErrNoParticipants)
}

func TestQRColumns(t *testing.T) {
	for n, want := range map[int]int{1: 1, 3: 3, 4: 4, 5: 3, 6: 3, 7: 4, 8: 4, 20: 4} {
		assert.Equal(t, want, qrColumns(n), "n=%d", n)
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Go_Workshop_2024-full-report.xlsx", Filename("Go Workshop 2024", "full-report", "xlsx"))
	assert.Equal(t, "event-qr-codes.pdf", Filename("", "qr-codes", "pdf"))
}

func TestQRCellsSortedByFirstName(t *testing.T) {
	signer := qr.NewSigner("k", "evently", 0)
	cells, err := QRCells(signer, []attendance.Participant{
		{ID: "1", FirstName: "zed", LastName: "A", EventID: "e"},
		{ID: "2", FirstName: "Amy", LastName: "B", EventID: "e"},
	})
	require.NoError(t, err)
	require.Len(t, cells, 2)
	assert.Equal(t, "Amy B", cells[0].Name)
	assert.NotEmpty(t, cells[0].PNG)
}
