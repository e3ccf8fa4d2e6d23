package dugsi_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/testutil"
)

// flakyStore wraps a LocalStore and fails Save on demand.
type flakyStore struct {
	dugsi.LocalStore
	fail bool
}

func (f *flakyStore) Save(snap *dugsi.Snapshot) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.LocalStore.Save(snap)
}

func openStore(t *testing.T) (*dugsi.Store, *testutil.StubClock) {
	t.Helper()
	clock := testutil.FixedClock()
	store, err := dugsi.Open(testutil.NewTestLocalStore(), clock, testutil.NewStubIDGenerator(), dugsi.NewNopLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return store, clock
}

func TestStore_LastUpdated(t *testing.T) {
	t.Run("strictly increases across mutations with a frozen clock", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		prev := store.LastUpdated()
		for i := 0; i < 5; i++ {
			if _, err := store.AddStudent(dugsi.Student{FullName: fmt.Sprintf("Student %d", i), Grade: "1"}); err != nil {
				t.Fatalf("AddStudent() error = %v", err)
			}
			got := store.LastUpdated()
			if got <= prev {
				t.Fatalf("lastUpdated %d not greater than previous %d", got, prev)
			}
			prev = got
		}
	})

	t.Run("uses wall clock when it moved forward", func(t *testing.T) {
		t.Parallel()
		store, clock := openStore(t)

		clock.Advance(time.Minute)
		if _, err := store.AddStudent(dugsi.Student{FullName: "Ayaan Warsame", Grade: "2"}); err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}

		want := clock.Now().UnixMilli()
		if got := store.LastUpdated(); got != want {
			t.Errorf("lastUpdated = %d, want wall clock %d", got, want)
		}
	})
}

func TestStore_FailedPersist(t *testing.T) {
	t.Parallel()

	local := &flakyStore{LocalStore: testutil.NewTestLocalStore()}
	store, err := dugsi.Open(local, testutil.FixedClock(), testutil.NewStubIDGenerator(), dugsi.NewNopLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	before := store.LastUpdated()
	count := len(store.Students())
	audits := len(store.AuditLogs())

	local.fail = true
	if _, err := store.AddStudent(dugsi.Student{FullName: "Khadija Nur", Grade: "3"}); err == nil {
		t.Fatal("AddStudent() succeeded, want persist error")
	}

	if got := store.LastUpdated(); got != before {
		t.Errorf("lastUpdated changed on failed persist: %d -> %d", before, got)
	}
	if got := len(store.Students()); got != count {
		t.Errorf("student count changed on failed persist: %d -> %d", count, got)
	}
	if got := len(store.AuditLogs()); got != audits {
		t.Errorf("audit count changed on failed persist: %d -> %d", audits, got)
	}

	// The store must stay usable once the local store recovers.
	local.fail = false
	if _, err := store.AddStudent(dugsi.Student{FullName: "Khadija Nur", Grade: "3"}); err != nil {
		t.Fatalf("AddStudent() after recovery error = %v", err)
	}
}

func TestStore_AuditLog(t *testing.T) {
	t.Run("caps at 100 entries, most recent first", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		for i := 0; i < 105; i++ {
			if err := store.RecordAttendance("STU-missing", dugsi.AttendancePresent, fmt.Sprintf("2026-01-%02d", i%28+1)); err != nil {
				t.Fatalf("RecordAttendance() error = %v", err)
			}
		}

		logs := store.AuditLogs()
		if len(logs) != 100 {
			t.Fatalf("got %d audit entries, want 100", len(logs))
		}
		if logs[0].Action != "Attendance" {
			t.Errorf("newest entry action = %q, want %q", logs[0].Action, "Attendance")
		}
	})

	t.Run("records the acting user", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		store.SetActor("admin@school.so")
		if _, err := store.AddStudent(dugsi.Student{FullName: "Liban Ahmed", Grade: "4"}); err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}

		logs := store.AuditLogs()
		if logs[0].User != "admin@school.so" {
			t.Errorf("audit user = %q, want %q", logs[0].User, "admin@school.so")
		}
	})
}

func TestStore_AddStudent(t *testing.T) {
	t.Run("fills defaults and creates the current month's fee", func(t *testing.T) {
		t.Parallel()
		store, clock := openStore(t)

		st, err := store.AddStudent(dugsi.Student{FullName: "Zahra Ismail", Grade: "2"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}

		if st.Section != "A" || st.Gender != "Male" || st.Dorm != "Dorm 1" {
			t.Errorf("defaults not applied: section=%q gender=%q dorm=%q", st.Section, st.Gender, st.Dorm)
		}
		if st.Status != "Active" {
			t.Errorf("status = %q, want Active", st.Status)
		}
		if want := clock.Now().Format("2006-01-02"); st.EnrollmentDate != want {
			t.Errorf("enrollmentDate = %q, want %q", st.EnrollmentDate, want)
		}
		if st.AcademicYear != store.CurrentYear() {
			t.Errorf("academicYear = %q, want %q", st.AcademicYear, store.CurrentYear())
		}

		month := clock.Now().Month().String()
		var found bool
		for _, f := range store.Fees() {
			if f.StudentID == st.ID && f.Month == month {
				found = true
				if f.Amount != dugsi.StandardFeeAmount || f.Status != dugsi.FeeUnpaid {
					t.Errorf("fee = %+v, want amount %d unpaid", f, dugsi.StandardFeeAmount)
				}
			}
		}
		if !found {
			t.Errorf("no %s fee created for %s", month, st.ID)
		}
	})

	t.Run("fee-exempt student gets no fee record", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		st, err := store.AddStudent(dugsi.Student{FullName: "Bilan Osman", Grade: "2", IsFree: true})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}

		for _, f := range store.AllFees() {
			if f.StudentID == st.ID {
				t.Errorf("fee %s created for fee-exempt student", f.ID)
			}
		}
	})
}

func TestStore_DeleteStudent(t *testing.T) {
	t.Run("keeps fee and attendance records and logs the counts", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		st, err := store.AddStudent(dugsi.Student{FullName: "Mohamed Jama", Grade: "1"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}
		if err := store.RecordAttendance(st.ID, dugsi.AttendancePresent, "2026-01-10"); err != nil {
			t.Fatalf("RecordAttendance() error = %v", err)
		}

		if err := store.DeleteStudent(st.ID); err != nil {
			t.Fatalf("DeleteStudent() error = %v", err)
		}

		if _, ok := store.Student(st.ID); ok {
			t.Error("student still present after delete")
		}

		var fees int
		for _, f := range store.AllFees() {
			if f.StudentID == st.ID {
				fees++
			}
		}
		if fees != 1 {
			t.Errorf("got %d orphaned fees, want 1", fees)
		}

		logs := store.AuditLogs()
		if want := "kept 1 fee, 1 attendance records"; !strings.Contains(logs[0].Details, want) {
			t.Errorf("audit details = %q, want substring %q", logs[0].Details, want)
		}
	})

	t.Run("unknown id is ErrNotFound", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		if err := store.DeleteStudent("STU-nope"); !errors.Is(err, dugsi.ErrNotFound) {
			t.Errorf("DeleteStudent() error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_EnsureFeeRecord(t *testing.T) {
	t.Run("idempotent per student, month and year", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		st, err := store.AddStudent(dugsi.Student{FullName: "Sagal Isse", Grade: "3"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}

		first, err := store.EnsureFeeRecord(st.ID, "March")
		if err != nil {
			t.Fatalf("EnsureFeeRecord() error = %v", err)
		}

		count := len(store.AllFees())
		stamp := store.LastUpdated()

		second, err := store.EnsureFeeRecord(st.ID, "March")
		if err != nil {
			t.Fatalf("EnsureFeeRecord() second call error = %v", err)
		}

		if second.ID != first.ID {
			t.Errorf("second call returned fee %s, want existing %s", second.ID, first.ID)
		}
		if got := len(store.AllFees()); got != count {
			t.Errorf("fee count changed: %d -> %d", count, got)
		}
		if got := store.LastUpdated(); got != stamp {
			t.Errorf("lastUpdated bumped by a no-op: %d -> %d", stamp, got)
		}
	})

	t.Run("fee-exempt student is refused", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		st, err := store.AddStudent(dugsi.Student{FullName: "Hodan Abdi", Grade: "3", IsFree: true})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}

		if _, err := store.EnsureFeeRecord(st.ID, "March"); !errors.Is(err, dugsi.ErrFeeExempt) {
			t.Errorf("EnsureFeeRecord() error = %v, want ErrFeeExempt", err)
		}
	})
}

func TestStore_ToggleFeeStatus(t *testing.T) {
	t.Run("toggling twice restores the original record", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		st, err := store.AddStudent(dugsi.Student{FullName: "Yusuf Noor", Grade: "1"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}
		orig, err := store.EnsureFeeRecord(st.ID, "April")
		if err != nil {
			t.Fatalf("EnsureFeeRecord() error = %v", err)
		}

		paid, err := store.ToggleFeeStatus(orig.ID)
		if err != nil {
			t.Fatalf("ToggleFeeStatus() error = %v", err)
		}
		if paid.Status != dugsi.FeePaid || paid.AmountPaid != paid.Amount || paid.DatePaid == "" {
			t.Errorf("after paying: %+v", paid)
		}

		back, err := store.ToggleFeeStatus(orig.ID)
		if err != nil {
			t.Fatalf("ToggleFeeStatus() second call error = %v", err)
		}
		if back != orig {
			t.Errorf("double toggle did not restore record:\n got %+v\nwant %+v", back, orig)
		}
	})

	t.Run("unknown fee is ErrNotFound", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		if _, err := store.ToggleFeeStatus("FEE-nope"); !errors.Is(err, dugsi.ErrNotFound) {
			t.Errorf("ToggleFeeStatus() error = %v, want ErrNotFound", err)
		}
	})
}

func TestStore_RecordAttendance(t *testing.T) {
	t.Run("upserts by student and date", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		if err := store.RecordAttendance("STU-1", dugsi.AttendancePresent, "2026-02-01"); err != nil {
			t.Fatalf("RecordAttendance() error = %v", err)
		}
		if err := store.RecordAttendance("STU-1", dugsi.AttendanceLate, "2026-02-01"); err != nil {
			t.Fatalf("RecordAttendance() second call error = %v", err)
		}

		var matches []dugsi.Attendance
		for _, a := range store.Attendance() {
			if a.StudentID == "STU-1" && a.Date == "2026-02-01" {
				matches = append(matches, a)
			}
		}
		if len(matches) != 1 {
			t.Fatalf("got %d records for the pair, want 1", len(matches))
		}
		if matches[0].Status != dugsi.AttendanceLate {
			t.Errorf("status = %q, want latest %q", matches[0].Status, dugsi.AttendanceLate)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		if err := store.RecordAttendance("STU-1", "Sick", "2026-02-01"); err == nil {
			t.Error("RecordAttendance() accepted invalid status")
		}
	})
}

func TestStore_AttendanceStats(t *testing.T) {
	t.Parallel()
	store, _ := openStore(t)

	days := []string{"2026-02-01", "2026-02-02", "2026-02-03"}
	statuses := []string{dugsi.AttendancePresent, dugsi.AttendancePresent, dugsi.AttendanceAbsent}
	for i, d := range days {
		if err := store.RecordAttendance("STU-stats", statuses[i], d); err != nil {
			t.Fatalf("RecordAttendance() error = %v", err)
		}
	}

	if got := store.AttendanceStats("STU-stats"); got != 67 {
		t.Errorf("AttendanceStats() = %d, want 67", got)
	}
	if got := store.AttendanceStats("STU-none"); got != 0 {
		t.Errorf("AttendanceStats() for unknown student = %d, want 0", got)
	}
}

func TestStore_SaveExamMarks(t *testing.T) {
	t.Parallel()
	store, _ := openStore(t)

	marks := []dugsi.ExamMark{
		{StudentID: "STU-1", Subject: "Mathematics", Term: "Term 1", Score: 80},
		{StudentID: "STU-2", Subject: "Mathematics", Term: "Term 1", Score: 72},
	}
	if err := store.SaveExamMarks(marks); err != nil {
		t.Fatalf("SaveExamMarks() error = %v", err)
	}

	before := len(store.ExamMarks())
	if err := store.SaveExamMarks([]dugsi.ExamMark{
		{StudentID: "STU-1", Subject: "Mathematics", Term: "Term 1", Score: 95},
	}); err != nil {
		t.Fatalf("SaveExamMarks() second call error = %v", err)
	}

	if got := len(store.ExamMarks()); got != before {
		t.Fatalf("mark count changed on upsert: %d -> %d", before, got)
	}
	for _, m := range store.ExamMarks() {
		if m.StudentID == "STU-1" && m.Subject == "Mathematics" && m.Term == "Term 1" && m.Score != 95 {
			t.Errorf("score = %v, want 95", m.Score)
		}
	}
}

func TestStore_Years(t *testing.T) {
	t.Run("add, switch and duplicate rejection", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		if err := store.AddYear("2027-2028"); err != nil {
			t.Fatalf("AddYear() error = %v", err)
		}
		if err := store.AddYear("2027-2028"); !errors.Is(err, dugsi.ErrYearExists) {
			t.Errorf("duplicate AddYear() error = %v, want ErrYearExists", err)
		}

		if err := store.SetCurrentYear("2027-2028"); err != nil {
			t.Fatalf("SetCurrentYear() error = %v", err)
		}
		if got := store.CurrentYear(); got != "2027-2028" {
			t.Errorf("CurrentYear() = %q, want 2027-2028", got)
		}
		if err := store.SetCurrentYear("1999-2000"); !errors.Is(err, dugsi.ErrNotFound) {
			t.Errorf("SetCurrentYear() unknown year error = %v, want ErrNotFound", err)
		}
	})

	t.Run("fee visibility follows the current year", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		st, err := store.AddStudent(dugsi.Student{FullName: "Farah Good", Grade: "1"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}
		fee, err := store.EnsureFeeRecord(st.ID, "May")
		if err != nil {
			t.Fatalf("EnsureFeeRecord() error = %v", err)
		}

		if err := store.AddYear("2028-2029"); err != nil {
			t.Fatalf("AddYear() error = %v", err)
		}
		if err := store.SetCurrentYear("2028-2029"); err != nil {
			t.Fatalf("SetCurrentYear() error = %v", err)
		}

		for _, f := range store.Fees() {
			if f.ID == fee.ID {
				t.Error("old-year fee visible after switching years")
			}
		}
		var kept bool
		for _, f := range store.AllFees() {
			if f.ID == fee.ID {
				kept = true
			}
		}
		if !kept {
			t.Error("old-year fee no longer stored")
		}
	})
}

func TestStore_ImportExport(t *testing.T) {
	t.Run("round trip replaces state wholesale", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		st, err := store.AddStudent(dugsi.Student{FullName: "Nimco Hashi", Grade: "2"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}
		data, err := store.ExportData()
		if err != nil {
			t.Fatalf("ExportData() error = %v", err)
		}

		other, _ := openStore(t)
		if err := other.ImportData(data); err != nil {
			t.Fatalf("ImportData() error = %v", err)
		}

		if _, ok := other.Student(st.ID); !ok {
			t.Errorf("imported store missing student %s", st.ID)
		}
	})

	t.Run("malformed payload leaves state untouched", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		before := store.LastUpdated()
		count := len(store.Students())

		if err := store.ImportData([]byte("{not json")); err == nil {
			t.Fatal("ImportData() accepted malformed payload")
		}

		if got := store.LastUpdated(); got != before {
			t.Errorf("lastUpdated changed: %d -> %d", before, got)
		}
		if got := len(store.Students()); got != count {
			t.Errorf("student count changed: %d -> %d", count, got)
		}
	})
}

func TestStore_Open(t *testing.T) {
	t.Run("reload does not restamp lastUpdated", func(t *testing.T) {
		t.Parallel()
		local := testutil.NewTestLocalStore()
		clock := testutil.FixedClock()
		idgen := testutil.NewStubIDGenerator()

		store, err := dugsi.Open(local, clock, idgen, dugsi.NewNopLogger())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		stamp := store.LastUpdated()

		clock.Advance(time.Hour)
		reopened, err := dugsi.Open(local, clock, idgen, dugsi.NewNopLogger())
		if err != nil {
			t.Fatalf("Open() reload error = %v", err)
		}

		if got := reopened.LastUpdated(); got != stamp {
			t.Errorf("plain reload restamped: %d -> %d", stamp, got)
		}
	})

	t.Run("snapshot from a newer build is refused", func(t *testing.T) {
		t.Parallel()
		local := testutil.NewTestLocalStore()
		snap := dugsi.NewSnapshot()
		snap.DataVersion = dugsi.CurrentDataVersion + 1
		if err := local.Save(snap); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		if _, err := dugsi.Open(local, testutil.FixedClock(), testutil.NewStubIDGenerator(), dugsi.NewNopLogger()); err == nil {
			t.Fatal("Open() accepted snapshot from a newer build")
		}
	})

	t.Run("empty store seeds sample data", func(t *testing.T) {
		t.Parallel()
		store, _ := openStore(t)

		if got := len(store.Students()); got == 0 {
			t.Error("seeded store has no students")
		}
		if got := store.DataVersion(); got != dugsi.CurrentDataVersion {
			t.Errorf("DataVersion() = %d, want %d", got, dugsi.CurrentDataVersion)
		}
	})
}

func TestStore_Subscribe(t *testing.T) {
	t.Parallel()
	store, _ := openStore(t)

	ch, cancel := store.Subscribe()
	defer cancel()

	if _, err := store.AddStudent(dugsi.Student{FullName: "Ugbad Ali", Grade: "1"}); err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no state-updated notification after mutation")
	}

	select {
	case <-store.SyncRequests():
	case <-time.After(time.Second):
		t.Fatal("no sync request after mutation")
	}
}

