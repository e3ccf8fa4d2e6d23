package main

import (
	"fmt"
	"os"
	"strings"

	"dugsi-go/internal/app"
	"dugsi-go/internal/config"
	"dugsi-go/internal/dugsi"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a DugsiApp. The caller must defer
// app.Close(). operation identifies the CLI command being run.
func newApp(operation string) (*app.DugsiApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewDugsiApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "dugsi",
	Short: "Offline-first school administration",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init SCHOOL_ID",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(args[0], defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("School ID: %s\n", cfg.SchoolID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("School ID: %s\n", cfg.SchoolID)
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Store:     %s\n", cfg.Store.Type)
		fmt.Printf("Remote:    %s\n", cfg.Remote.Type)
		return nil
	},
}

// student command
var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage students",
}

var studentAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Enroll a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		grade, _ := cmd.Flags().GetString("grade")
		section, _ := cmd.Flags().GetString("section")
		gender, _ := cmd.Flags().GetString("gender")
		free, _ := cmd.Flags().GetBool("free")

		a, err := newApp("AddStudent")
		if err != nil {
			return err
		}
		defer a.Close()

		student, err := a.Store().AddStudent(dugsi.Student{
			FullName: args[0],
			Grade:    grade,
			Section:  section,
			Gender:   gender,
			IsFree:   free,
		})
		if err != nil {
			return fmt.Errorf("enrolling student: %w", err)
		}

		fmt.Printf("Enrolled %s (%s), grade %s section %s\n",
			student.FullName, student.ID, student.Grade, student.Section)
		return nil
	},
}

var studentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled students",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListStudents")
		if err != nil {
			return err
		}
		defer a.Close()

		students := a.Store().Students()
		if len(students) == 0 {
			fmt.Println("No students enrolled.")
			return nil
		}

		for _, s := range students {
			free := ""
			if s.IsFree {
				free = "  [fee-exempt]"
			}
			fmt.Printf("%-12s  %-25s  grade %-2s %-2s  %s%s\n",
				s.ID, s.FullName, s.Grade, s.Section, s.Status, free)
		}
		return nil
	},
}

var studentRmCmd = &cobra.Command{
	Use:   "rm STUDENT_ID",
	Short: "Remove a student",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteStudent")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().DeleteStudent(args[0]); err != nil {
			return fmt.Errorf("removing student: %w", err)
		}

		fmt.Printf("Removed student %s\n", args[0])
		return nil
	},
}

// teacher command
var teacherCmd = &cobra.Command{
	Use:   "teacher",
	Short: "Manage teachers",
}

var teacherListCmd = &cobra.Command{
	Use:   "list",
	Short: "List teachers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListTeachers")
		if err != nil {
			return err
		}
		defer a.Close()

		teachers := a.Store().Teachers()
		if len(teachers) == 0 {
			fmt.Println("No teachers recorded.")
			return nil
		}

		for _, t := range teachers {
			fmt.Printf("%-8s  %-25s  %-20s  %s\n", t.ID, t.Name, t.Subject, t.Phone)
		}
		return nil
	},
}

// fee command
var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Manage fee records",
}

var feeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fee records for the current academic year",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListFees")
		if err != nil {
			return err
		}
		defer a.Close()

		fees := a.Store().Fees()
		if len(fees) == 0 {
			fmt.Println("No fee records for the current year.")
			return nil
		}

		for _, f := range fees {
			paid := ""
			if f.DatePaid != "" {
				paid = "  paid " + f.DatePaid
			}
			fmt.Printf("%-12s  %-12s  %-10s  %6.2f  %-6s%s\n",
				f.ID, f.StudentID, f.Month, f.Amount, f.Status, paid)
		}
		return nil
	},
}

var feeToggleCmd = &cobra.Command{
	Use:   "toggle FEE_ID",
	Short: "Toggle a fee between paid and unpaid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ToggleFeeStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		fee, err := a.Store().ToggleFeeStatus(args[0])
		if err != nil {
			return fmt.Errorf("toggling fee: %w", err)
		}

		fmt.Printf("Fee %s for %s is now %s\n", fee.ID, fee.StudentID, fee.Status)
		return nil
	},
}

var feeEnsureCmd = &cobra.Command{
	Use:   "ensure STUDENT_ID MONTH",
	Short: "Ensure a fee record exists for a student and month",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("EnsureFeeRecord")
		if err != nil {
			return err
		}
		defer a.Close()

		fee, err := a.Store().EnsureFeeRecord(args[0], args[1])
		if err != nil {
			return fmt.Errorf("ensuring fee record: %w", err)
		}

		fmt.Printf("Fee %s: %s %s, %.2f, %s\n", fee.ID, fee.StudentID, fee.Month, fee.Amount, fee.Status)
		return nil
	},
}

// attendance command
var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Manage attendance",
}

var attendanceRecordCmd = &cobra.Command{
	Use:   "record STUDENT_ID STATUS",
	Short: "Record attendance (Present, Absent, or Late)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")

		a, err := newApp("RecordAttendance")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().RecordAttendance(args[0], args[1], date); err != nil {
			return fmt.Errorf("recording attendance: %w", err)
		}

		fmt.Printf("Recorded %s for %s\n", args[1], args[0])
		return nil
	},
}

var attendanceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List attendance for the current academic year",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListAttendance")
		if err != nil {
			return err
		}
		defer a.Close()

		records := a.Store().Attendance()
		if len(records) == 0 {
			fmt.Println("No attendance recorded.")
			return nil
		}

		for _, r := range records {
			fmt.Printf("%s  %-12s  %s\n", r.Date, r.StudentID, r.Status)
		}
		return nil
	},
}

var attendanceStatsCmd = &cobra.Command{
	Use:   "stats STUDENT_ID",
	Short: "Show a student's attendance percentage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AttendanceStats")
		if err != nil {
			return err
		}
		defer a.Close()

		pct := a.Store().AttendanceStats(args[0])
		fmt.Printf("%s: %d%% present\n", args[0], pct)
		return nil
	},
}

// year command
var yearCmd = &cobra.Command{
	Use:   "year",
	Short: "Manage academic years",
}

var yearListCmd = &cobra.Command{
	Use:   "list",
	Short: "List academic years",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ListYears")
		if err != nil {
			return err
		}
		defer a.Close()

		current := a.Store().CurrentYear()
		for _, y := range a.Store().Years() {
			marker := ""
			if y == current {
				marker = "  [current]"
			}
			fmt.Printf("%s%s\n", y, marker)
		}
		return nil
	},
}

var yearAddCmd = &cobra.Command{
	Use:   "add YEAR",
	Short: "Add an academic year (e.g. 2027-2028)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AddYear")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().AddYear(args[0]); err != nil {
			return fmt.Errorf("adding year: %w", err)
		}
		fmt.Printf("Added academic year %s\n", args[0])
		return nil
	},
}

var yearRmCmd = &cobra.Command{
	Use:   "rm YEAR",
	Short: "Remove an academic year",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteYear")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().DeleteYear(args[0]); err != nil {
			return fmt.Errorf("removing year: %w", err)
		}
		fmt.Printf("Removed academic year %s\n", args[0])
		return nil
	},
}

var yearSetCmd = &cobra.Command{
	Use:   "set YEAR",
	Short: "Set the current academic year",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SetCurrentYear")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().SetCurrentYear(args[0]); err != nil {
			return fmt.Errorf("setting current year: %w", err)
		}
		fmt.Printf("Current academic year is now %s\n", args[0])
		return nil
	},
}

// audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("ListAuditLogs")
		if err != nil {
			return err
		}
		defer a.Close()

		logs := a.Store().AuditLogs()
		if len(logs) == 0 {
			fmt.Println("No audit entries.")
			return nil
		}
		if limit > 0 && len(logs) > limit {
			logs = logs[:limit]
		}

		for _, l := range logs {
			fmt.Printf("%s  %-12s  %-20s  %s\n", l.Timestamp, l.User, l.Action, l.Details)
		}
		return nil
	},
}

// message command
var messageCmd = &cobra.Command{
	Use:   "message PHONE TEXT...",
	Short: "Record an outgoing message to a guardian",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("SendMessage")
		if err != nil {
			return err
		}
		defer a.Close()

		text := strings.Join(args[1:], " ")
		if err := a.Store().SendMessage(args[0], text, a.Config().SchoolID); err != nil {
			return fmt.Errorf("recording message: %w", err)
		}

		fmt.Printf("Message to %s recorded\n", args[0])
		return nil
	},
}

// export / import / seed commands
var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Export all school data as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("ExportData")
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := a.Store().ExportData()
		if err != nil {
			return fmt.Errorf("exporting data: %w", err)
		}

		if len(args) == 0 {
			fmt.Println(string(data))
			return nil
		}
		if err := os.WriteFile(args[0], data, 0600); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		fmt.Printf("Exported to %s\n", args[0])
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace all school data from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading import file: %w", err)
		}

		a, err := newApp("ImportData")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().ImportData(data); err != nil {
			return fmt.Errorf("importing data: %w", err)
		}

		fmt.Printf("Imported data from %s\n", args[0])
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Discard all data and reseed with sample records",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Reseed")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().Reseed(); err != nil {
			return fmt.Errorf("reseeding: %w", err)
		}

		fmt.Println("Store reseeded with sample data.")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// student subcommands
	studentCmd.AddCommand(studentAddCmd)
	studentAddCmd.Flags().String("grade", "1", "Grade (1-12)")
	studentAddCmd.Flags().String("section", "A", "Section within the grade")
	studentAddCmd.Flags().String("gender", "Male", "Gender")
	studentAddCmd.Flags().Bool("free", false, "Exempt this student from fees")
	studentCmd.AddCommand(studentListCmd)
	studentCmd.AddCommand(studentRmCmd)

	// teacher subcommands
	teacherCmd.AddCommand(teacherListCmd)

	// fee subcommands
	feeCmd.AddCommand(feeListCmd)
	feeCmd.AddCommand(feeToggleCmd)
	feeCmd.AddCommand(feeEnsureCmd)

	// attendance subcommands
	attendanceCmd.AddCommand(attendanceRecordCmd)
	attendanceRecordCmd.Flags().String("date", "", "Date (YYYY-MM-DD, default today)")
	attendanceCmd.AddCommand(attendanceListCmd)
	attendanceCmd.AddCommand(attendanceStatsCmd)

	// year subcommands
	yearCmd.AddCommand(yearListCmd)
	yearCmd.AddCommand(yearAddCmd)
	yearCmd.AddCommand(yearRmCmd)
	yearCmd.AddCommand(yearSetCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(studentCmd)
	rootCmd.AddCommand(teacherCmd)
	rootCmd.AddCommand(feeCmd)
	rootCmd.AddCommand(attendanceCmd)
	rootCmd.AddCommand(yearCmd)
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	rootCmd.AddCommand(messageCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(seedCmd)
}
