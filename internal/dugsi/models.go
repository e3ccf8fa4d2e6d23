package dugsi

// Fee status values. No partial-payment state is modeled: a fee is either
// settled in full or not at all.
const (
	FeePaid   = "PAID"
	FeeUnpaid = "UNPAID"
)

// StandardFeeAmount is the flat monthly tuition fee in USD.
const StandardFeeAmount = 20

// Attendance status values.
const (
	AttendancePresent = "Present"
	AttendanceAbsent  = "Absent"
	AttendanceLate    = "Late"
)

// Student is an enrolled student. IsFree marks a fee-exempt student:
// automatic fee-record creation never bills them.
type Student struct {
	ID                 string `json:"id"`
	ListNumber         int    `json:"listNumber,omitempty"`
	FullName           string `json:"fullName"`
	Grade              string `json:"grade"`
	Section            string `json:"section"`
	Dorm               string `json:"dorm,omitempty"`
	Gender             string `json:"gender"`
	IsFree             bool   `json:"isFree"`
	ParentName         string `json:"parentName,omitempty"`
	ParentPhone        string `json:"parentPhone,omitempty"`
	EnrollmentDate     string `json:"enrollmentDate"`
	AcademicYear       string `json:"academicYear,omitempty"`
	Status             string `json:"status"`
	PerformanceRemarks string `json:"performanceRemarks,omitempty"`
}

// Teacher is a staff member.
type Teacher struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Phone    string  `json:"phone,omitempty"`
	Gender   string  `json:"gender,omitempty"`
	Salary   float64 `json:"salary,omitempty"`
	Subject  string  `json:"subject,omitempty"`
	Status   string  `json:"status"`
	JoinDate string  `json:"joinDate,omitempty"`
}

// Fee is one student's tuition bill for one month of one academic year.
// DatePaid is empty while the fee is unpaid.
type Fee struct {
	ID         string  `json:"id"`
	StudentID  string  `json:"studentId"`
	Month      string  `json:"month"`
	Year       string  `json:"year"`
	Amount     float64 `json:"amount"`
	AmountPaid float64 `json:"amountPaid"`
	Status     string  `json:"status"`
	DatePaid   string  `json:"datePaid,omitempty"`
	DueDate    string  `json:"dueDate,omitempty"`
}

// Attendance is one student's attendance for one calendar date.
// There is exactly one record per (StudentID, Date) pair.
type Attendance struct {
	StudentID string `json:"studentId"`
	Date      string `json:"date"` // YYYY-MM-DD
	Status    string `json:"status"`
	Year      string `json:"year,omitempty"`
}

// Exam is an exam definition.
type Exam struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type,omitempty"`
	Term     string  `json:"term,omitempty"`
	Weight   float64 `json:"weight,omitempty"`
	Subjects int     `json:"subjects,omitempty"`
	Students int     `json:"students,omitempty"`
	Status   string  `json:"status,omitempty"`
	Date     string  `json:"date,omitempty"`
}

// ExamMark is one student's score in one subject for one term.
// Marks are upserted by (StudentID, Subject, Term).
type ExamMark struct {
	StudentID string  `json:"studentId"`
	ExamID    string  `json:"examId,omitempty"`
	Subject   string  `json:"subject"`
	Term      string  `json:"term"`
	Score     float64 `json:"score"`
}

// AuditLog is one entry in the bounded, most-recent-first audit trail.
// The trail is informational only and never drives behavior.
type AuditLog struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}

// User is a role mapping for the view layer. Authentication itself happens
// against the remote; no credentials are stored here.
type User struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

// MessagingSettings holds the SMS sender number and message templates.
type MessagingSettings struct {
	SenderNumber string            `json:"senderNumber,omitempty"`
	Templates    map[string]string `json:"templates,omitempty"`
}

// Settings holds school-wide configuration maintained by the owner.
type Settings struct {
	PrincipalName string            `json:"principalName"`
	HeadTeachers  map[string]string `json:"headTeachers,omitempty"`
	Messaging     MessagingSettings `json:"messaging,omitempty"`
}
