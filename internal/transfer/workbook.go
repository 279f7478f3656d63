package transfer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/unichart/unichart/internal/curriculum"
)

const (
	summarySheet = "Summary"
	coursesSheet = "Courses"
)

// WriteProgressWorkbook writes an XLSX workbook with a per-group progress
// summary and a full course checklist for the given template and progress.
func WriteProgressWorkbook(w io.Writer, t *curriculum.Template, p curriculum.Progress) error {
	if t == nil {
		return fmt.Errorf("no template loaded")
	}

	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(coursesSheet); err != nil {
		return fmt.Errorf("create courses sheet: %w", err)
	}

	if err := writeSummary(f, t, p); err != nil {
		return err
	}
	if err := writeCourses(f, t, p); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, t *curriculum.Template, p curriculum.Progress) error {
	header := []any{"Group", "Passed units", "Required units", "Overflow", "Complete %"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	row := 2
	for _, g := range t.Groups {
		gp := curriculum.ComputeGroupProgress(t, p, g.ID)
		values := []any{
			g.Title,
			gp.Passed,
			gp.Required,
			gp.Overflow,
			curriculum.CompletionPercent(gp.Passed, gp.Required),
		}
		cell := fmt.Sprintf("A%d", row)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
		row++
	}

	total := curriculum.UnitsCompleted(t.Courses(), p.PassedCourses)
	totals := []any{
		"Total",
		total,
		t.TotalUnitsRequired,
		"",
		curriculum.CompletionPercent(total, t.TotalUnitsRequired),
	}
	cell := fmt.Sprintf("A%d", row)
	if err := f.SetSheetRow(summarySheet, cell, &totals); err != nil {
		return fmt.Errorf("write summary totals: %w", err)
	}

	return f.SetColWidth(summarySheet, "A", "A", 30)
}

func writeCourses(f *excelize.File, t *curriculum.Template, p curriculum.Progress) error {
	header := []any{"Course", "Group", "Units", "Passed", "Term"}
	if err := f.SetSheetRow(coursesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write courses header: %w", err)
	}

	terms := make(map[string]int, len(p.PassedCourses))
	for _, pc := range p.PassedCourses {
		terms[pc.CourseID] = pc.Term
	}
	passedIDs := p.PassedIDs()

	row := 2
	for _, g := range t.Groups {
		for _, c := range g.Courses {
			passed := "no"
			var term any
			if passedIDs[c.ID] {
				passed = "yes"
				term = terms[c.ID]
			}
			values := []any{c.Title, g.Title, c.Units, passed, term}
			cell := fmt.Sprintf("A%d", row)
			if err := f.SetSheetRow(coursesSheet, cell, &values); err != nil {
				return fmt.Errorf("write course row: %w", err)
			}
			row++
		}
	}

	return f.SetColWidth(coursesSheet, "A", "B", 30)
}
