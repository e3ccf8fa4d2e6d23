package dugsi

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned by mutations referencing a nonexistent id.
	// No partial mutation occurs in that case.
	ErrNotFound = errors.New("record not found")

	// ErrFeeExempt is returned when a fee record is requested for a
	// fee-exempt student.
	ErrFeeExempt = errors.New("student is fee-exempt")

	// ErrYearExists is returned when adding an academic year that is
	// already registered.
	ErrYearExists = errors.New("academic year already exists")
)

// errNoChange signals from inside a mutation closure that the snapshot was
// not modified; the store then skips stamping, persisting and notifying.
var errNoChange = errors.New("no change")

// maxAuditLogs caps the audit trail, most recent first.
const maxAuditLogs = 100

// Store is the injectable state container owning the snapshot. All domain
// data changes go through its mutation methods: each one applies to a clone
// of the snapshot, appends an audit entry, stamps lastUpdated, persists
// locally, and only then commits the clone as the new state. A failed
// persist therefore never bumps lastUpdated or leaves partial visibility.
//
// After every committed mutation the store emits a state-updated
// notification (Subscribe) and a coalesced sync request (SyncRequests).
type Store struct {
	mu    sync.Mutex
	state *Snapshot
	local LocalStore
	clock Clock
	idgen IDGenerator
	log   Logger
	actor string

	listenMu     sync.Mutex
	listeners    map[int]chan struct{}
	nextListener int

	syncReq chan struct{}
}

// Open loads the snapshot from the local store, migrating it to the current
// data version, or seeds a fresh one when nothing usable is stored.
// A local store that fails to load is treated as empty, never as fatal.
// A snapshot written by a newer build is the one load error: overwriting it
// would destroy data this build cannot understand.
func Open(local LocalStore, clock Clock, idgen IDGenerator, log Logger) (*Store, error) {
	s := &Store{
		local:     local,
		clock:     clock,
		idgen:     idgen,
		log:       log,
		actor:     "System",
		listeners: make(map[int]chan struct{}),
		syncReq:   make(chan struct{}, 1),
	}

	snap, err := local.Load()
	if err != nil {
		log.Warn("local snapshot unreadable, falling back to seed data", "error", err)
		snap = nil
	}

	// Only seeding and migrating are local mutations that stamp lastUpdated
	// and persist. A plain load leaves the stored timestamp untouched so a
	// newer remote copy still wins reconciliation.
	changed := false
	switch {
	case snap == nil:
		snap = Seed(clock, idgen)
		log.Info("seeded fresh snapshot", "students", len(snap.Students))
		changed = true
	case snap.DataVersion > CurrentDataVersion:
		return nil, fmt.Errorf("snapshot data version %d is ahead of supported version %d (binary needs update)",
			snap.DataVersion, CurrentDataVersion)
	case snap.DataVersion < MinDataVersion:
		log.Warn("snapshot predates minimum supported version, reseeding",
			"stored", snap.DataVersion, "minimum", MinDataVersion)
		snap = Seed(clock, idgen)
		changed = true
	case snap.DataVersion < CurrentDataVersion:
		migrated, err := MigrateSnapshot(snap)
		if err != nil {
			return nil, fmt.Errorf("migrating snapshot: %w", err)
		}
		log.Info("migrated snapshot", "from", snap.DataVersion, "to", migrated.DataVersion)
		snap = migrated
		changed = true
	}

	if changed {
		s.stampLocked(snap)
		if err := local.Save(snap); err != nil {
			return nil, fmt.Errorf("saving snapshot: %w", err)
		}
	}
	s.state = snap
	return s, nil
}

// SetActor sets the user name recorded in audit entries for subsequent
// mutations. Defaults to "System".
func (s *Store) SetActor(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name != "" {
		s.actor = name
	}
}

// Subscribe registers for state-updated notifications, fired after every
// persisted mutation and after every reconciliation that changed local
// state. Notifications are coalesced: the channel carries at most one
// pending signal. The returned cancel function is idempotent.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	id := s.nextListener
	s.nextListener++
	ch := make(chan struct{}, 1)
	s.listeners[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.listenMu.Lock()
			delete(s.listeners, id)
			s.listenMu.Unlock()
		})
	}
	return ch, cancel
}

// SyncRequests returns the channel the sync engine drains. A request is
// queued (coalesced) after every committed mutation; local mutations are
// never blocked waiting for the network.
func (s *Store) SyncRequests() <-chan struct{} {
	return s.syncReq
}

func (s *Store) notify() {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) requestSync() {
	select {
	case s.syncReq <- struct{}{}:
	default:
	}
}

// mutate runs fn against a clone of the snapshot and commits the clone if
// fn succeeds and the persist succeeds. fn returns the audit details line;
// returning errNoChange commits nothing and reports success.
func (s *Store) mutate(action string, fn func(next *Snapshot) (string, error)) error {
	s.mu.Lock()
	next := s.state.Clone()
	details, err := fn(next)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, errNoChange) {
			return nil
		}
		return err
	}
	s.appendAudit(next, action, details)
	s.stampLocked(next)
	if err := s.local.Save(next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving snapshot: %w", err)
	}
	s.state = next
	s.mu.Unlock()

	s.log.Debug("mutation committed", "action", action, "details", details)
	s.notify()
	s.requestSync()
	return nil
}

// stampLocked bumps lastUpdated strictly: wall clock when it moved forward,
// previous value plus one otherwise. Callers hold s.mu.
func (s *Store) stampLocked(next *Snapshot) {
	now := s.clock.Now().UnixMilli()
	if prev := s.state; prev != nil && now <= prev.LastUpdated {
		now = prev.LastUpdated + 1
	}
	next.LastUpdated = now
}

func (s *Store) appendAudit(next *Snapshot, action, details string) {
	entry := AuditLog{
		ID:        s.newID("LOG"),
		Timestamp: s.clock.Now().UTC().Format(time.RFC3339),
		User:      s.actor,
		Action:    action,
		Details:   details,
	}
	next.AuditLogs = append([]AuditLog{entry}, next.AuditLogs...)
	if len(next.AuditLogs) > maxAuditLogs {
		next.AuditLogs = next.AuditLogs[:maxAuditLogs]
	}
}

func (s *Store) newID(prefix string) string {
	return prefix + "-" + s.idgen.New()
}

func (s *Store) today() string {
	return s.clock.Now().Format("2006-01-02")
}

// --- Students ---

// AddStudent registers a new student with defaults filled in and, unless
// the student is fee-exempt, ensures a fee record for the current month.
func (s *Store) AddStudent(fields Student) (Student, error) {
	var created Student
	err := s.mutate("Add Student", func(next *Snapshot) (string, error) {
		st := fields
		st.ID = s.newID("STU")
		if st.Section == "" {
			st.Section = "A"
		}
		if st.Gender == "" {
			st.Gender = "Male"
		}
		if st.Dorm == "" {
			st.Dorm = "Dorm 1"
		}
		if st.EnrollmentDate == "" {
			st.EnrollmentDate = s.today()
		}
		st.Status = "Active"
		st.AcademicYear = next.CurrentYear
		next.Students = append(next.Students, st)

		if !st.IsFree {
			month := s.clock.Now().Month().String()
			s.ensureFee(next, st.ID, month)
		}

		created = st
		return fmt.Sprintf("Added student %s", st.FullName), nil
	})
	return created, err
}

// StudentUpdate carries optional field updates; nil fields are left as-is.
type StudentUpdate struct {
	FullName           *string
	Grade              *string
	Section            *string
	Dorm               *string
	Gender             *string
	IsFree             *bool
	ParentName         *string
	ParentPhone        *string
	Status             *string
	PerformanceRemarks *string
}

// UpdateStudent merges the given fields into an existing student.
func (s *Store) UpdateStudent(id string, upd StudentUpdate) error {
	return s.mutate("Update Student", func(next *Snapshot) (string, error) {
		i := next.findStudent(id)
		if i < 0 {
			return "", fmt.Errorf("student %s: %w", id, ErrNotFound)
		}
		st := &next.Students[i]
		setString(&st.FullName, upd.FullName)
		setString(&st.Grade, upd.Grade)
		setString(&st.Section, upd.Section)
		setString(&st.Dorm, upd.Dorm)
		setString(&st.Gender, upd.Gender)
		setString(&st.ParentName, upd.ParentName)
		setString(&st.ParentPhone, upd.ParentPhone)
		setString(&st.Status, upd.Status)
		setString(&st.PerformanceRemarks, upd.PerformanceRemarks)
		if upd.IsFree != nil {
			st.IsFree = *upd.IsFree
		}
		return fmt.Sprintf("Updated student %s", st.FullName), nil
	})
}

// DeleteStudent removes the student record. Existing fee and attendance
// records are kept: they become orphaned references by design, and the
// orphan counts are written to the audit trail to keep the choice visible.
func (s *Store) DeleteStudent(id string) error {
	return s.mutate("Delete Student", func(next *Snapshot) (string, error) {
		i := next.findStudent(id)
		if i < 0 {
			return "", fmt.Errorf("student %s: %w", id, ErrNotFound)
		}
		name := next.Students[i].FullName
		next.Students = append(next.Students[:i], next.Students[i+1:]...)

		var fees, att int
		for _, f := range next.Fees {
			if f.StudentID == id {
				fees++
			}
		}
		for _, a := range next.Attendance {
			if a.StudentID == id {
				att++
			}
		}
		return fmt.Sprintf("Deleted student %s (kept %d fee, %d attendance records)", name, fees, att), nil
	})
}

// Student returns the student with the given id.
func (s *Store) Student(id string) (Student, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.state.findStudent(id); i >= 0 {
		return s.state.Students[i], true
	}
	return Student{}, false
}

// Students returns all students.
func (s *Store) Students() []Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Student(nil), s.state.Students...)
}

// --- Teachers ---

// AddTeacher registers a new teacher.
func (s *Store) AddTeacher(fields Teacher) (Teacher, error) {
	var created Teacher
	err := s.mutate("Add Teacher", func(next *Snapshot) (string, error) {
		t := fields
		t.ID = s.newID("TCH")
		t.Status = "Active"
		if t.JoinDate == "" {
			t.JoinDate = s.today()
		}
		next.Teachers = append(next.Teachers, t)
		created = t
		return fmt.Sprintf("Added teacher %s", t.Name), nil
	})
	return created, err
}

// TeacherUpdate carries optional field updates; nil fields are left as-is.
type TeacherUpdate struct {
	Name    *string
	Phone   *string
	Gender  *string
	Salary  *float64
	Subject *string
	Status  *string
}

// UpdateTeacher merges the given fields into an existing teacher.
func (s *Store) UpdateTeacher(id string, upd TeacherUpdate) error {
	return s.mutate("Update Teacher", func(next *Snapshot) (string, error) {
		i := next.findTeacher(id)
		if i < 0 {
			return "", fmt.Errorf("teacher %s: %w", id, ErrNotFound)
		}
		t := &next.Teachers[i]
		setString(&t.Name, upd.Name)
		setString(&t.Phone, upd.Phone)
		setString(&t.Gender, upd.Gender)
		setString(&t.Subject, upd.Subject)
		setString(&t.Status, upd.Status)
		if upd.Salary != nil {
			t.Salary = *upd.Salary
		}
		return fmt.Sprintf("Updated teacher %s", t.Name), nil
	})
}

// DeleteTeacher removes a teacher record.
func (s *Store) DeleteTeacher(id string) error {
	return s.mutate("Delete Teacher", func(next *Snapshot) (string, error) {
		i := next.findTeacher(id)
		if i < 0 {
			return "", fmt.Errorf("teacher %s: %w", id, ErrNotFound)
		}
		next.Teachers = append(next.Teachers[:i], next.Teachers[i+1:]...)
		return fmt.Sprintf("Deleted teacher %s", id), nil
	})
}

// Teachers returns all teachers.
func (s *Store) Teachers() []Teacher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Teacher(nil), s.state.Teachers...)
}

// --- Fees ---

// Fees returns the fee records of the current academic year. Records from
// other years remain stored but are invisible here.
func (s *Store) Fees() []Fee {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Fee
	for _, f := range s.state.Fees {
		if f.Year == s.state.CurrentYear {
			out = append(out, f)
		}
	}
	return out
}

// AllFees returns every fee record across academic years, for cross-year
// reporting.
func (s *Store) AllFees() []Fee {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Fee(nil), s.state.Fees...)
}

// EnsureFeeRecord creates a fee record at the standard amount if and only
// if none exists for (student, month, current year) and the student is not
// fee-exempt. Safe to call repeatedly: an existing record is returned
// unchanged and nothing is persisted.
func (s *Store) EnsureFeeRecord(studentID, month string) (Fee, error) {
	var out Fee
	err := s.mutate("Ensure Fee", func(next *Snapshot) (string, error) {
		i := next.findStudent(studentID)
		if i < 0 {
			return "", fmt.Errorf("student %s: %w", studentID, ErrNotFound)
		}
		if next.Students[i].IsFree {
			return "", fmt.Errorf("student %s: %w", studentID, ErrFeeExempt)
		}
		if existing := findFeeFor(next, studentID, month, next.CurrentYear); existing != nil {
			out = *existing
			return "", errNoChange
		}
		out = *s.ensureFee(next, studentID, month)
		return fmt.Sprintf("Created %s fee for %s", month, studentID), nil
	})
	return out, err
}

// ensureFee is the shared creation path; callers have verified the student
// exists and is not exempt. Idempotent per (student, month, year).
func (s *Store) ensureFee(next *Snapshot, studentID, month string) *Fee {
	if existing := findFeeFor(next, studentID, month, next.CurrentYear); existing != nil {
		return existing
	}
	next.Fees = append(next.Fees, Fee{
		ID:        s.newID("FEE"),
		StudentID: studentID,
		Month:     month,
		Year:      next.CurrentYear,
		Amount:    StandardFeeAmount,
		Status:    FeeUnpaid,
	})
	return &next.Fees[len(next.Fees)-1]
}

func findFeeFor(snap *Snapshot, studentID, month, year string) *Fee {
	for i := range snap.Fees {
		f := &snap.Fees[i]
		if f.StudentID == studentID && f.Month == month && f.Year == year {
			return f
		}
	}
	return nil
}

// ToggleFeeStatus flips a fee between paid and unpaid. Paying sets
// amountPaid to the full amount and stamps the payment date; unpaying
// zeroes both. Applying it twice restores the original record.
func (s *Store) ToggleFeeStatus(feeID string) (Fee, error) {
	var out Fee
	err := s.mutate("Update Fee", func(next *Snapshot) (string, error) {
		i := next.findFee(feeID)
		if i < 0 {
			return "", fmt.Errorf("fee %s: %w", feeID, ErrNotFound)
		}
		f := &next.Fees[i]
		old := f.Status
		if f.Status == FeePaid {
			f.Status = FeeUnpaid
			f.AmountPaid = 0
			f.DatePaid = ""
		} else {
			f.Status = FeePaid
			f.AmountPaid = f.Amount
			f.DatePaid = s.clock.Now().UTC().Format(time.RFC3339)
		}
		out = *f
		return fmt.Sprintf("Changed fee %s status from %s to %s", feeID, old, f.Status), nil
	})
	return out, err
}

// --- Attendance ---

// Attendance returns the attendance records of the current academic year,
// matched by the date prefix against either calendar year the academic
// year spans.
func (s *Store) Attendance() []Attendance {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := strings.SplitN(s.state.CurrentYear, "-", 2)
	var out []Attendance
	for _, a := range s.state.Attendance {
		for _, p := range parts {
			if p != "" && strings.HasPrefix(a.Date, p) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// RecordAttendance upserts the attendance record for (student, date):
// exactly one record exists per student per calendar date, bearing the
// latest status.
func (s *Store) RecordAttendance(studentID, status, date string) error {
	switch status {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
	default:
		return fmt.Errorf("invalid attendance status %q", status)
	}
	if date == "" {
		date = s.today()
	}
	return s.mutate("Attendance", func(next *Snapshot) (string, error) {
		for i := range next.Attendance {
			if next.Attendance[i].StudentID == studentID && next.Attendance[i].Date == date {
				next.Attendance[i].Status = status
				return fmt.Sprintf("Marked %s as %s for %s", studentID, status, date), nil
			}
		}
		next.Attendance = append(next.Attendance, Attendance{
			StudentID: studentID,
			Date:      date,
			Status:    status,
			Year:      next.CurrentYear,
		})
		return fmt.Sprintf("Marked %s as %s for %s", studentID, status, date), nil
	})
}

// AttendanceStats returns the percentage of recorded days the student was
// present, rounded to the nearest whole percent. Zero when nothing is
// recorded.
func (s *Store) AttendanceStats(studentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var present, total int
	for _, a := range s.state.Attendance {
		if a.StudentID != studentID {
			continue
		}
		total++
		if a.Status == AttendancePresent {
			present++
		}
	}
	if total == 0 {
		return 0
	}
	return int(float64(present)/float64(total)*100 + 0.5)
}

// --- Exams ---

// Exams returns all exam definitions.
func (s *Store) Exams() []Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Exam(nil), s.state.Exams...)
}

// AddExam registers a new exam definition.
func (s *Store) AddExam(fields Exam) (Exam, error) {
	var created Exam
	err := s.mutate("Create Exam", func(next *Snapshot) (string, error) {
		e := fields
		if e.ID == "" {
			e.ID = s.newID("EXAM")
		}
		if e.Status == "" {
			e.Status = "Open"
		}
		next.Exams = append(next.Exams, e)
		created = e
		return fmt.Sprintf("Created exam: %s", e.Name), nil
	})
	return created, err
}

// ExamUpdate carries optional field updates; nil fields are left as-is.
type ExamUpdate struct {
	Name   *string
	Type   *string
	Term   *string
	Weight *float64
	Status *string
	Date   *string
}

// UpdateExam merges the given fields into an existing exam definition.
func (s *Store) UpdateExam(id string, upd ExamUpdate) error {
	return s.mutate("Update Exam", func(next *Snapshot) (string, error) {
		i := next.findExam(id)
		if i < 0 {
			return "", fmt.Errorf("exam %s: %w", id, ErrNotFound)
		}
		e := &next.Exams[i]
		setString(&e.Name, upd.Name)
		setString(&e.Type, upd.Type)
		setString(&e.Term, upd.Term)
		setString(&e.Status, upd.Status)
		setString(&e.Date, upd.Date)
		if upd.Weight != nil {
			e.Weight = *upd.Weight
		}
		return fmt.Sprintf("Updated exam: %s", e.Name), nil
	})
}

// DeleteExam removes an exam definition. Recorded marks referencing it are
// kept, mirroring the orphaning policy for students.
func (s *Store) DeleteExam(id string) error {
	return s.mutate("Delete Exam", func(next *Snapshot) (string, error) {
		i := next.findExam(id)
		if i < 0 {
			return "", fmt.Errorf("exam %s: %w", id, ErrNotFound)
		}
		next.Exams = append(next.Exams[:i], next.Exams[i+1:]...)
		return fmt.Sprintf("Deleted exam ID: %s", id), nil
	})
}

// ExamMarks returns all recorded exam marks.
func (s *Store) ExamMarks() []ExamMark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ExamMark(nil), s.state.ExamMarks...)
}

// SaveExamMarks upserts a batch of marks, each keyed by
// (student, subject, term).
func (s *Store) SaveExamMarks(marks []ExamMark) error {
	if len(marks) == 0 {
		return nil
	}
	return s.mutate("Exams", func(next *Snapshot) (string, error) {
	outer:
		for _, m := range marks {
			for i := range next.ExamMarks {
				cur := &next.ExamMarks[i]
				if cur.StudentID == m.StudentID && cur.Subject == m.Subject && cur.Term == m.Term {
					*cur = m
					continue outer
				}
			}
			next.ExamMarks = append(next.ExamMarks, m)
		}
		return fmt.Sprintf("Saved %d scores for %s (%s)", len(marks), marks[0].Subject, marks[0].Term), nil
	})
}

// --- Settings, users, years ---

// Settings returns the school settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state.Settings
	out.HeadTeachers = cloneStringMap(out.HeadTeachers)
	out.Messaging.Templates = cloneStringMap(out.Messaging.Templates)
	return out
}

// SettingsUpdate carries optional settings changes; nil fields are left
// as-is. A non-nil map replaces the stored one wholesale.
type SettingsUpdate struct {
	PrincipalName *string
	HeadTeachers  map[string]string
	Messaging     *MessagingSettings
}

// UpdateSettings merges the given changes into the school settings.
func (s *Store) UpdateSettings(upd SettingsUpdate) error {
	return s.mutate("Settings Update", func(next *Snapshot) (string, error) {
		setString(&next.Settings.PrincipalName, upd.PrincipalName)
		if upd.HeadTeachers != nil {
			next.Settings.HeadTeachers = cloneStringMap(upd.HeadTeachers)
		}
		if upd.Messaging != nil {
			next.Settings.Messaging = *upd.Messaging
			next.Settings.Messaging.Templates = cloneStringMap(upd.Messaging.Templates)
		}
		return "Updated school settings", nil
	})
}

// Users returns the role mappings.
func (s *Store) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]User(nil), s.state.Users...)
}

// UserUpdate carries optional user changes; nil fields are left as-is.
type UserUpdate struct {
	Role *string
	Name *string
}

// UpdateUser merges the given changes into the user with the given email.
func (s *Store) UpdateUser(email string, upd UserUpdate) error {
	return s.mutate("User Update", func(next *Snapshot) (string, error) {
		for i := range next.Users {
			if next.Users[i].Email == email {
				setString(&next.Users[i].Role, upd.Role)
				setString(&next.Users[i].Name, upd.Name)
				return fmt.Sprintf("Updated user %s", email), nil
			}
		}
		return "", fmt.Errorf("user %s: %w", email, ErrNotFound)
	})
}

// Years returns the registered academic years.
func (s *Store) Years() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.state.AcademicYears...)
}

// CurrentYear returns the active academic-year partition key.
func (s *Store) CurrentYear() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.CurrentYear
}

// AddYear registers a new academic year.
func (s *Store) AddYear(year string) error {
	return s.mutate("Add Year", func(next *Snapshot) (string, error) {
		for _, y := range next.AcademicYears {
			if y == year {
				return "", fmt.Errorf("year %s: %w", year, ErrYearExists)
			}
		}
		next.AcademicYears = append(next.AcademicYears, year)
		return fmt.Sprintf("Added academic year %s", year), nil
	})
}

// DeleteYear unregisters an academic year. Records partitioned under it are
// kept; they simply stop being visible through the year-filtered getters.
func (s *Store) DeleteYear(year string) error {
	return s.mutate("Delete Year", func(next *Snapshot) (string, error) {
		for i, y := range next.AcademicYears {
			if y == year {
				next.AcademicYears = append(next.AcademicYears[:i], next.AcademicYears[i+1:]...)
				return fmt.Sprintf("Deleted academic year %s", year), nil
			}
		}
		return "", fmt.Errorf("year %s: %w", year, ErrNotFound)
	})
}

// SetCurrentYear switches the active academic-year partition.
func (s *Store) SetCurrentYear(year string) error {
	return s.mutate("Switch Year", func(next *Snapshot) (string, error) {
		for _, y := range next.AcademicYears {
			if y == year {
				next.CurrentYear = year
				return fmt.Sprintf("Switched to academic year %s", year), nil
			}
		}
		return "", fmt.Errorf("year %s: %w", year, ErrNotFound)
	})
}

// --- Audit, messaging ---

// AuditLogs returns the audit trail, most recent first.
func (s *Store) AuditLogs() []AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditLog(nil), s.state.AuditLogs...)
}

// SendMessage records an outbound SMS in the audit trail. Actual delivery
// is handled outside this system; this keeps the paper trail.
func (s *Store) SendMessage(phone, message, sender string) error {
	preview := message
	if len(preview) > 30 {
		preview = preview[:30] + "..."
	}
	return s.mutate("SMS", func(next *Snapshot) (string, error) {
		return fmt.Sprintf("Sent to %s from %s: %s", phone, sender, preview), nil
	})
}

// --- Snapshot-level operations ---

// ExportData serializes the current snapshot.
func (s *Store) ExportData() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Encode()
}

// ImportData replaces the snapshot wholesale with a previously exported
// one. The payload is parsed and migrated before anything is touched: on
// malformed input the loaded snapshot stays exactly as it was.
func (s *Store) ImportData(data []byte) error {
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if snap.DataVersion > CurrentDataVersion {
		return fmt.Errorf("import: snapshot data version %d is ahead of supported version %d",
			snap.DataVersion, CurrentDataVersion)
	}
	if snap.DataVersion < MinDataVersion {
		return fmt.Errorf("import: snapshot data version %d predates minimum supported version %d",
			snap.DataVersion, MinDataVersion)
	}
	if snap.DataVersion < CurrentDataVersion {
		if snap, err = MigrateSnapshot(snap); err != nil {
			return fmt.Errorf("import: %w", err)
		}
	}

	s.mu.Lock()
	s.appendAudit(snap, "Import", fmt.Sprintf("Imported snapshot with %d students", len(snap.Students)))
	s.stampLocked(snap)
	if err := s.local.Save(snap); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving snapshot: %w", err)
	}
	s.state = snap
	s.mu.Unlock()

	s.notify()
	s.requestSync()
	return nil
}

// Reseed replaces the snapshot with fresh demo data. Development
// convenience only; never triggered implicitly.
func (s *Store) Reseed() error {
	snap := Seed(s.clock, s.idgen)

	s.mu.Lock()
	s.stampLocked(snap)
	if err := s.local.Save(snap); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving snapshot: %w", err)
	}
	s.state = snap
	s.mu.Unlock()

	s.notify()
	s.requestSync()
	return nil
}

// LastUpdated returns the snapshot's logical timestamp.
func (s *Store) LastUpdated() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastUpdated
}

// DataVersion returns the snapshot's schema version.
func (s *Store) DataVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.DataVersion
}

// EncodedState returns the canonical encoding of the current snapshot and
// its lastUpdated, taken under one lock so the pair is consistent. The sync
// engine pushes this to the remote.
func (s *Store) EncodedState() ([]byte, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.state.Encode()
	if err != nil {
		return nil, 0, err
	}
	return data, s.state.LastUpdated, nil
}

// ReplaceFromRemote installs a snapshot pulled from the remote, persisting
// it as-is: lastUpdated is the remote's, not a fresh stamp, and no sync
// request is queued (the replicas already agree). Observers are notified so
// views refresh.
func (s *Store) ReplaceFromRemote(snap *Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot from remote")
	}
	snap.normalize()

	s.mu.Lock()
	if err := s.local.Save(snap); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("saving snapshot: %w", err)
	}
	s.state = snap
	s.mu.Unlock()

	s.notify()
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
