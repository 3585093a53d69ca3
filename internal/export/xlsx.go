package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"evently/internal/attendance"
)

var dayHeaders = []string{"Participant", "AM Check-in", "AM Check-out", "PM Check-in", "PM Check-out", "Status"}

type xlsxStyles struct {
	title, subtitle, bold, header, cell int
	fills                              map[string]int
}

func newXLSXStyles(f *excelize.File) (*xlsxStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	center := &excelize.Alignment{Horizontal: "center"}
	s := &xlsxStyles{fills: map[string]int{}}
	var err error
	steps := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}, Alignment: center}},
		{&s.subtitle, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}, Alignment: center}},
		{&s.bold, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&s.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: center,
			Border:    border,
			Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D3D3D3"}},
		}},
		{&s.cell, &excelize.Style{Border: border}},
	}
	for _, st := range steps {
		if *st.dst, err = f.NewStyle(st.style); err != nil {
			return nil, err
		}
	}
	for _, color := range []string{"E6E6FA", "F0F8FF", "FF6347", "90EE90", "FFD700"} {
		id, err := f.NewStyle(&excelize.Style{
			Border: border,
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return nil, err
		}
		s.fills[color] = id
	}
	return s, nil
}

// FullReportXLSX renders one worksheet per event day plus an "Event Summary"
// sheet.
func FullReportXLSX(rep attendance.EventReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   rep.Event.EventName + " - Full Attendance Report",
		Subject: "Attendance Report",
		Creator: "evently",
	}); err != nil {
		return nil, err
	}
	styles, err := newXLSXStyles(f)
	if err != nil {
		return nil, fmt.Errorf("xlsx styles: %w", err)
	}

	for _, day := range rep.Days {
		name := fmt.Sprintf("Day %d - %s", day.Summary.Day, longDate(day.Summary.Date))
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		if err := writeDaySheet(f, name, rep.Event, day, styles); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
	}
	if err := writeSummarySheet(f, rep, styles); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeDaySheet(f *excelize.File, sheet string, ev attendance.EventDetails, day attendance.DayReport, s *xlsxStyles) error {
	set := func(cell string, v any, style int) error {
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if style == 0 {
			return nil
		}
		return f.SetCellStyle(sheet, cell, cell, style)
	}

	for _, m := range [][2]string{{"A1", "F1"}, {"A2", "F2"}, {"B4", "C4"}, {"D4", "E4"}} {
		if err := f.MergeCell(sheet, m[0], m[1]); err != nil {
			return err
		}
	}
	if err := set("A1", ev.EventName, s.title); err != nil {
		return err
	}
	if err := set("A2", eventSubtitle(ev), s.subtitle); err != nil {
		return err
	}
	if err := set("B4", "AM Time", s.header); err != nil {
		return err
	}
	if err := set("D4", "PM Time", s.header); err != nil {
		return err
	}
	for i, h := range dayHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 5)
		if err := set(cell, h, s.header); err != nil {
			return err
		}
	}

	for i, entry := range day.Entries {
		row := i + 6
		cps := checkpoints(entry.Record)
		text, color := statusLabel(entry, day.Summary.Status)
		values := []string{entry.Participant.DisplayName(), cps[0], cps[1], cps[2], cps[3], text}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			style := s.cell
			if col == len(values)-1 {
				style = s.fills[color]
			}
			if err := set(cell, v, style); err != nil {
				return err
			}
		}
	}

	sum := day.Summary
	r := len(day.Entries) + 8
	if err := f.MergeCell(sheet, fmt.Sprintf("A%d", r), fmt.Sprintf("F%d", r)); err != nil {
		return err
	}
	if err := set(fmt.Sprintf("A%d", r), "Daily Summary", s.subtitle); err != nil {
		return err
	}
	rows := [][2]any{{"Total Participants:", sum.TotalParticipants}}
	if sum.Status == attendance.DayCompleted {
		rows = append(rows, [2]any{"Present:", sum.Present}, [2]any{"Absent:", sum.Absent})
	} else {
		rows = append(rows, [2]any{"Checked In:", sum.CheckedIn}, [2]any{"Status:", string(sum.Status)})
	}
	for i, kv := range rows {
		if err := set(fmt.Sprintf("A%d", r+2+i), kv[0], s.bold); err != nil {
			return err
		}
		if err := set(fmt.Sprintf("B%d", r+2+i), kv[1], 0); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", 30); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "E", 15); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "F", "F", 24)
}

func writeSummarySheet(f *excelize.File, rep attendance.EventReport, s *xlsxStyles) error {
	const sheet = "Event Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	tab := "4682B4"
	if err := f.SetSheetProps(sheet, &excelize.SheetPropsOptions{TabColorRGB: &tab}); err != nil {
		return err
	}
	heads := []struct {
		cell  string
		value string
		style int
	}{
		{"A1", rep.Event.EventName, s.title},
		{"A2", eventSubtitle(rep.Event), s.subtitle},
		{"A3", "Overall Event Attendance Summary", s.subtitle},
	}
	for i, h := range heads {
		if err := f.MergeCell(sheet, h.cell, fmt.Sprintf("C%d", i+1)); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, h.cell, h.value); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, h.cell, h.cell, h.style); err != nil {
			return err
		}
	}
	rows := [][2]any{
		{"Total Days:", rep.TotalDays},
		{"Total Participants:", rep.TotalParticipants},
		{"Average Daily Attendance:", rep.RateText()},
	}
	for i, kv := range rows {
		a, b := fmt.Sprintf("A%d", i+5), fmt.Sprintf("B%d", i+5)
		if err := f.SetCellValue(sheet, a, kv[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, a, a, s.bold); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, b, kv[1]); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 25); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "B", "C", 15)
}
