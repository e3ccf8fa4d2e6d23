package dugsi

import (
	"encoding/json"
	"fmt"
)

// CurrentDataVersion is the snapshot schema version this build expects.
// Snapshots behind it are migrated at load (see migrate.go); snapshots
// below MinDataVersion are too old to migrate and are replaced with seed
// data, matching the behavior of loading with no prior state.
const (
	CurrentDataVersion = 8
	MinDataVersion     = 4
)

// Snapshot is the complete serializable application state and the unit of
// synchronization. It is only ever mutated through the Store; LastUpdated
// is the sole conflict-resolution key between replicas.
type Snapshot struct {
	Students      []Student    `json:"students"`
	Teachers      []Teacher    `json:"teachers"`
	Fees          []Fee        `json:"fees"`
	Attendance    []Attendance `json:"attendance"`
	Exams         []Exam       `json:"exams"`
	ExamMarks     []ExamMark   `json:"examMarks"`
	AuditLogs     []AuditLog   `json:"auditLogs"`
	Users         []User       `json:"users"`
	Settings      Settings     `json:"settings"`
	AcademicYears []string     `json:"academicYears"`
	CurrentYear   string       `json:"currentYear"`
	DataVersion   int          `json:"dataVersion"`
	LastUpdated   int64        `json:"lastUpdated"` // unix milliseconds
}

// NewSnapshot returns an empty snapshot at the current data version with
// the default academic-year partition.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Students:      []Student{},
		Teachers:      []Teacher{},
		Fees:          []Fee{},
		Attendance:    []Attendance{},
		Exams:         []Exam{},
		ExamMarks:     []ExamMark{},
		AuditLogs:     []AuditLog{},
		Users:         []User{},
		AcademicYears: []string{"2025-2026", "2026-2027"},
		CurrentYear:   "2025-2026",
		DataVersion:   CurrentDataVersion,
	}
}

// Clone returns a deep copy. Mutations always run against a clone so a
// failed persist never leaves the committed state half-changed.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Students = append([]Student(nil), s.Students...)
	c.Teachers = append([]Teacher(nil), s.Teachers...)
	c.Fees = append([]Fee(nil), s.Fees...)
	c.Attendance = append([]Attendance(nil), s.Attendance...)
	c.Exams = append([]Exam(nil), s.Exams...)
	c.ExamMarks = append([]ExamMark(nil), s.ExamMarks...)
	c.AuditLogs = append([]AuditLog(nil), s.AuditLogs...)
	c.Users = append([]User(nil), s.Users...)
	c.AcademicYears = append([]string(nil), s.AcademicYears...)
	c.Settings.HeadTeachers = cloneStringMap(s.Settings.HeadTeachers)
	c.Settings.Messaging.Templates = cloneStringMap(s.Settings.Messaging.Templates)
	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Encode serializes the snapshot to its canonical JSON form. This is the
// format used for local persistence, remote documents and export.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a serialized snapshot. Nil slices are normalized to
// empty ones so callers never have to guard collection access.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	s.normalize()
	return &s, nil
}

// normalize replaces nil collections with empty ones. Snapshots written by
// older versions may omit collections entirely.
func (s *Snapshot) normalize() {
	if s.Students == nil {
		s.Students = []Student{}
	}
	if s.Teachers == nil {
		s.Teachers = []Teacher{}
	}
	if s.Fees == nil {
		s.Fees = []Fee{}
	}
	if s.Attendance == nil {
		s.Attendance = []Attendance{}
	}
	if s.Exams == nil {
		s.Exams = []Exam{}
	}
	if s.ExamMarks == nil {
		s.ExamMarks = []ExamMark{}
	}
	if s.AuditLogs == nil {
		s.AuditLogs = []AuditLog{}
	}
	if s.Users == nil {
		s.Users = []User{}
	}
	if s.AcademicYears == nil {
		s.AcademicYears = []string{}
	}
}

// findStudent returns the index of the student with the given id, or -1.
func (s *Snapshot) findStudent(id string) int {
	for i := range s.Students {
		if s.Students[i].ID == id {
			return i
		}
	}
	return -1
}

// findTeacher returns the index of the teacher with the given id, or -1.
func (s *Snapshot) findTeacher(id string) int {
	for i := range s.Teachers {
		if s.Teachers[i].ID == id {
			return i
		}
	}
	return -1
}

// findFee returns the index of the fee with the given id, or -1.
func (s *Snapshot) findFee(id string) int {
	for i := range s.Fees {
		if s.Fees[i].ID == id {
			return i
		}
	}
	return -1
}

// findExam returns the index of the exam with the given id, or -1.
func (s *Snapshot) findExam(id string) int {
	for i := range s.Exams {
		if s.Exams[i].ID == id {
			return i
		}
	}
	return -1
}
