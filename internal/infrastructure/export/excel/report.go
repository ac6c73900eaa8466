package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/telarian/switchboard/internal/core/domain"
)

const sheetName = "Agent Usage"

var reportHeader = []string{
	"Thread ID",
	"Title",
	"Context",
	"Agent",
	"Messages",
	"Share %",
	"Avg Processing (ms)",
	"Avg Confidence",
	"First Seen",
	"Primary",
	"Thread Handoffs",
}

// ReportWriter renders agent usage analytics as an xlsx workbook: one row
// per (thread, participating agent) pair, in the thread's first-appearance
// agent order.
type ReportWriter struct{}

func NewReportWriter() *ReportWriter {
	return &ReportWriter{}
}

func (rw *ReportWriter) WriteUsageReport(w io.Writer, threads []domain.ConversationThread) error {
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	file.SetSheetName("Sheet1", sheetName)

	if err := writeRow(file, 1, headerCells()); err != nil {
		return err
	}

	row := 2
	for i := range threads {
		thread := &threads[i]
		for _, agent := range thread.ParticipatingAgents {
			stat := thread.UsageStats.PerAgent[agent]
			cells := []any{
				thread.ID,
				thread.Title,
				string(thread.Context),
				string(agent),
				stat.MessageCount,
				thread.UsageStats.SharePercent(agent),
				stat.AvgProcessingMS,
				stat.AvgConfidence,
				stat.FirstSeen.UTC().Format("2006-01-02 15:04:05"),
				thread.PrimaryAgent == agent,
				len(thread.Handoffs),
			}
			if err := writeRow(file, row, cells); err != nil {
				return err
			}
			row++
		}
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write usage report: %w", err)
	}
	return nil
}

func headerCells() []any {
	cells := make([]any, len(reportHeader))
	for i, name := range reportHeader {
		cells[i] = name
	}
	return cells
}

func writeRow(file *excelize.File, row int, cells []any) error {
	for col, value := range cells {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("usage report cell (%d,%d): %w", col+1, row, err)
		}
		if err := file.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("usage report cell %s: %w", cell, err)
		}
	}
	return nil
}
