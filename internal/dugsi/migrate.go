package dugsi

import (
	"fmt"
	"strings"
)

// migration is one ordered snapshot transform step. Apply receives a clone
// and may modify it in place; the pipeline stamps the resulting version.
type migration struct {
	From  int
	To    int
	Apply func(*Snapshot) error
}

// migrations is the ordered pipeline bringing a stored snapshot up to
// CurrentDataVersion. Versioned reseeding is deliberately not part of it:
// anything at or above MinDataVersion migrates without data loss.
var migrations = []migration{
	{From: 4, To: 5, Apply: func(s *Snapshot) error {
		// Exams became a first-class collection.
		if s.Exams == nil {
			s.Exams = []Exam{}
		}
		if s.ExamMarks == nil {
			s.ExamMarks = []ExamMark{}
		}
		return nil
	}},
	{From: 5, To: 6, Apply: func(s *Snapshot) error {
		// Messaging settings gained defaults.
		if s.Settings.Messaging.Templates == nil {
			s.Settings.Messaging.Templates = map[string]string{}
		}
		return nil
	}},
	{From: 6, To: 7, Apply: func(s *Snapshot) error {
		// Students were linked to their enrollment academic year.
		for i := range s.Students {
			if s.Students[i].AcademicYear == "" {
				s.Students[i].AcademicYear = s.CurrentYear
			}
		}
		if len(s.AcademicYears) == 0 {
			s.AcademicYears = []string{s.CurrentYear}
		}
		return nil
	}},
	{From: 7, To: 8, Apply: func(s *Snapshot) error {
		// Fee statuses were normalized to upper case and attendance
		// records stamped with their year partition.
		for i := range s.Fees {
			s.Fees[i].Status = strings.ToUpper(s.Fees[i].Status)
		}
		for i := range s.Attendance {
			if s.Attendance[i].Year == "" {
				s.Attendance[i].Year = s.CurrentYear
			}
		}
		return nil
	}},
}

// MigrateSnapshot applies every pending migration step in order and
// returns the upgraded copy. The input snapshot is not modified. Gaps in
// the pipeline and versions outside [MinDataVersion, CurrentDataVersion]
// are errors; the caller decides whether to reseed.
func MigrateSnapshot(snap *Snapshot) (*Snapshot, error) {
	if snap.DataVersion < MinDataVersion {
		return nil, fmt.Errorf("data version %d predates minimum supported version %d", snap.DataVersion, MinDataVersion)
	}
	if snap.DataVersion > CurrentDataVersion {
		return nil, fmt.Errorf("data version %d is ahead of supported version %d", snap.DataVersion, CurrentDataVersion)
	}

	out := snap.Clone()
	out.normalize()
	for out.DataVersion < CurrentDataVersion {
		step, ok := findMigration(out.DataVersion)
		if !ok {
			return nil, fmt.Errorf("no migration step from data version %d", out.DataVersion)
		}
		if err := step.Apply(out); err != nil {
			return nil, fmt.Errorf("migrating %d -> %d: %w", step.From, step.To, err)
		}
		out.DataVersion = step.To
	}
	return out, nil
}

func findMigration(from int) (migration, bool) {
	for _, m := range migrations {
		if m.From == from {
			return m, true
		}
	}
	return migration{}, false
}
