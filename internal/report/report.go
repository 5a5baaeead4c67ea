// Package report exports a learner's dashboard as an Excel workbook.
package report

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pencilsharp/pencilsharp/internal/curriculum"
	"github.com/pencilsharp/pencilsharp/internal/progress"
)

// Sheet names, in workbook order.
const (
	SheetSubjects     = "Subjects"
	SheetProgress     = "Progress"
	SheetAchievements = "Achievements"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Snapshot is everything a report shows.
type Snapshot struct {
	Learner  string
	Subjects []curriculum.Subject
	Progress progress.UserProgress
}

// Write renders the snapshot as an .xlsx workbook into w.
func Write(w io.Writer, snap Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSubjects); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetProgress, SheetAchievements} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	if err := writeSubjects(f, snap.Subjects); err != nil {
		return err
	}
	if err := writeProgress(f, snap); err != nil {
		return err
	}
	if err := writeAchievements(f, snap.Progress.Achievements); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSubjects(f *excelize.File, subjects []curriculum.Subject) error {
	rows := [][]any{{"Subject", "Subject Progress", "Unit", "Unit Progress", "Topic", "Status", "Topic Progress"}}
	for _, s := range subjects {
		for _, u := range s.Units {
			for _, t := range u.Topics {
				rows = append(rows, []any{s.Name, s.Progress, u.Name, u.Progress, t.Name, topicStatus(t), t.Progress})
			}
		}
	}
	return setRows(f, SheetSubjects, rows)
}

func writeProgress(f *excelize.File, snap Snapshot) error {
	p := snap.Progress
	rows := [][]any{
		{"Learner", snap.Learner},
		{"XP", p.XP},
		{"Points", p.Points},
		{"Streak", p.Streak},
		{"Daily Goal", p.DailyGoal},
		{"Lessons Today", p.LessonsCompletedToday},
		{"Last Activity", formatDate(p.LastActivityDate)},
		{},
		{"Subject", "Progress"},
	}

	// Map order is random; sort for a stable sheet.
	names := make([]string, 0, len(p.SubjectProgress))
	for name := range p.SubjectProgress {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		rows = append(rows, []any{name, p.SubjectProgress[name]})
	}
	return setRows(f, SheetProgress, rows)
}

func writeAchievements(f *excelize.File, achievements []progress.Achievement) error {
	rows := [][]any{{"Achievement", "Description", "Icon", "Earned"}}
	for _, a := range achievements {
		rows = append(rows, []any{a.Name, a.Description, a.Icon, a.EarnedAt.Format(time.RFC3339)})
	}
	return setRows(f, SheetAchievements, rows)
}

func setRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func topicStatus(t *curriculum.Topic) string {
	switch {
	case t.Completed():
		return "completed"
	case t.IsLocked:
		return "locked"
	default:
		return "open"
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
