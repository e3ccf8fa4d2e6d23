package dugsi

import (
	"fmt"
	"math/rand"
	"time"
)

var (
	seedFirstNames = []string{
		"Ahmed", "Mohamed", "Ali", "Hassan", "Yusuf", "Ibrahim", "Abdi", "Omar", "Osman", "Khalid",
		"Fatima", "Aisha", "Khadija", "Mariam", "Leyla", "Zahra", "Hibo", "Sahra", "Naima", "Fowzia",
	}
	seedLastNames = []string{
		"Nur", "Farah", "Gedi", "Warsame", "Dualeh", "Abdi", "Hassan", "Ali", "Mohamed", "Omar",
	}
	seedGrades   = []string{"Form 1", "Form 2", "Form 3", "Form 4"}
	seedSections = []string{"A", "B"}
	seedDorms    = []string{"Dorm 1", "Dorm 2", "Dorm 3", "Dorm 4"}
	seedMonths   = []string{"January", "February", "March"}
)

// Seed generates the demo dataset: 20 students per grade/section (the first
// 5 of each section fee-exempt), 15 days of attendance, three months of
// fees for billable students, four teachers and three exam definitions.
func Seed(clock Clock, idgen IDGenerator) *Snapshot {
	rng := rand.New(rand.NewSource(clock.Now().UnixNano()))
	snap := NewSnapshot()

	snap.Settings = Settings{
		PrincipalName: "abdulahi abdi",
		HeadTeachers: map[string]string{
			"Form 1": "Mr. Ahmed Nur",
			"Form 2": "Ms. Fatima Farah",
			"Form 3": "Mr. Ali Gedi",
			"Form 4": "Ms. Aisha Dualeh",
		},
		Messaging: MessagingSettings{
			SenderNumber: "0612373534",
			Templates: map[string]string{
				"reminder": "Dear parents, this is a reminder that the monthly fee payment period is approaching. Please settle on time. Thank you.",
				"deadline": "Dear parents, the monthly fee payment is now due. Please settle as soon as you are able. Thank you.",
			},
		},
	}

	snap.Users = []User{
		{Email: "director@alhudaschool.edu", Role: "owner", Name: "Director"},
		{Email: "principal@alhudaschool.edu", Role: "principal", Name: "Principal"},
		{Email: "teacher@alhudaschool.edu", Role: "teacher", Name: "Teacher"},
		{Email: "accounts@alhudaschool.edu", Role: "fees", Name: "Accounts Officer"},
	}

	for _, grade := range seedGrades {
		for _, section := range seedSections {
			for i := 0; i < 20; i++ {
				fname := seedFirstNames[rng.Intn(len(seedFirstNames))]
				lname := seedLastNames[rng.Intn(len(seedLastNames))]
				gender := "Male"
				if rng.Intn(2) == 0 {
					gender = "Female"
				}
				remarks := ""
				if i%5 == 0 {
					remarks = "Excellent progress"
				}
				snap.Students = append(snap.Students, Student{
					ID:                 "STU-" + idgen.New(),
					ListNumber:         i + 1,
					FullName:           fmt.Sprintf("%s %s %s", fname, lname, seedLastNames[rng.Intn(len(seedLastNames))]),
					Grade:              grade,
					Section:            section,
					Dorm:               seedDorms[rng.Intn(len(seedDorms))],
					Gender:             gender,
					IsFree:             i < 5, // five free-fee students per section
					ParentName:         fmt.Sprintf("%s %s", lname, seedLastNames[rng.Intn(len(seedLastNames))]),
					ParentPhone:        fmt.Sprintf("615-%06d", 100000+rng.Intn(900000)),
					EnrollmentDate:     "2024-09-01",
					AcademicYear:       snap.CurrentYear,
					Status:             "Active",
					PerformanceRemarks: remarks,
				})
			}
		}
	}

	// Attendance for the last 15 days.
	today := clock.Now()
	for _, st := range snap.Students {
		for d := 0; d < 15; d++ {
			date := today.AddDate(0, 0, -d).Format("2006-01-02")
			status := AttendancePresent
			switch r := rng.Float64(); {
			case r > 0.90:
				status = AttendanceAbsent
			case r > 0.82:
				status = AttendanceLate
			}
			snap.Attendance = append(snap.Attendance, Attendance{
				StudentID: st.ID,
				Date:      date,
				Status:    status,
				Year:      snap.CurrentYear,
			})
		}
	}

	// Fees for billable students, strictly paid or unpaid.
	for _, st := range snap.Students {
		if st.IsFree {
			continue
		}
		for idx, month := range seedMonths {
			fee := Fee{
				ID:        "FEE-" + idgen.New(),
				StudentID: st.ID,
				Month:     month,
				Year:      snap.CurrentYear,
				Amount:    StandardFeeAmount,
				Status:    FeeUnpaid,
				DueDate:   fmt.Sprintf("2026-%02d-05", idx+1),
			}
			if rng.Float64() > 0.4 {
				fee.Status = FeePaid
				fee.AmountPaid = StandardFeeAmount
				fee.DatePaid = today.UTC().Format(time.RFC3339)
			}
			snap.Fees = append(snap.Fees, fee)
		}
	}

	snap.Teachers = []Teacher{
		{ID: "KT001", Name: "Abdirahmaan Ali Aadan", Phone: "+252613609678", Gender: "Male", Salary: 300, Subject: "Mathematics", Status: "Active"},
		{ID: "KT002", Name: "Fardowsa Mohamed", Phone: "+252615554321", Gender: "Female", Salary: 280, Subject: "Science", Status: "Active"},
		{ID: "KT003", Name: "Hassan Omar", Phone: "+252617778899", Gender: "Male", Salary: 320, Subject: "English", Status: "Active"},
		{ID: "KT004", Name: "Amina Yussuf", Phone: "+252612223344", Gender: "Female", Salary: 300, Subject: "Islamic Studies", Status: "Active"},
	}

	snap.Exams = []Exam{
		{ID: "EXAM-001", Name: "Term 1 Assessment", Type: "Teacher-based", Term: "Term 1", Weight: 33.33, Subjects: 3, Status: "Open", Date: "2025-09-12T19:44:43"},
		{ID: "EXAM-002", Name: "Midterm Exam", Type: "School Import", Term: "Term 2", Weight: 100, Subjects: 3, Status: "Open", Date: "2025-09-10T10:00:00"},
		{ID: "EXAM-003", Name: "Final Exam", Type: "Final", Term: "Final", Weight: 100, Subjects: 3, Status: "Open", Date: "2025-10-01T08:00:00"},
	}

	snap.AuditLogs = []AuditLog{{
		ID:        "LOG-" + idgen.New(),
		Timestamp: clock.Now().UTC().Format(time.RFC3339),
		User:      "System",
		Action:    "System",
		Details:   fmt.Sprintf("Database initialized with seed data version %d", CurrentDataVersion),
	}}

	return snap
}
