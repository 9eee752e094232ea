// Package report exports learner progress as a spreadsheet.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/curriculum"
)

// SheetName is the name of the progress worksheet.
const SheetName = "Progress"

// Columns is the header row of the progress worksheet.
var Columns = []string{"Order", "Topic", "Depth", "Status", "Mastery", "Minutes", "Quiz Average"}

// WriteProgressWorkbook writes one row per topic in order to w as an .xlsx workbook.
func WriteProgressWorkbook(w io.Writer, c *curriculum.Curriculum) error {
	if c == nil {
		return errors.New("report: nil curriculum")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("report: rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: c.Name, Subject: "Learning progress"}); err != nil {
		return fmt.Errorf("report: doc props: %w", err)
	}

	header := make([]any, len(Columns))
	for i, col := range Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("report: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report: style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, bold); err != nil {
		return fmt.Errorf("report: style: %w", err)
	}

	for i, t := range c.Topics {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := topicRow(t)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("report: row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(SheetName, "B", "B", 40); err != nil {
		return fmt.Errorf("report: column width: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("report: freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

func topicRow(t *curriculum.Topic) []any {
	var minutes, quiz float64
	if t.Progress != nil {
		minutes = round2(t.Progress.TimeSpent / 60)
		quiz = round2(t.Progress.AverageQuizScore())
	}
	return []any{
		t.OrderIndex + 1,
		t.Title,
		string(t.Depth),
		string(curriculum.DeriveStatus(t)),
		round2(t.Mastery),
		minutes,
		quiz,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
