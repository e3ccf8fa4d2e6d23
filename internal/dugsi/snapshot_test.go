package dugsi_test

import (
	"testing"

	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/testutil"
)

func TestSnapshot_Clone(t *testing.T) {
	t.Parallel()

	orig := dugsi.Seed(testutil.FixedClock(), testutil.NewStubIDGenerator())
	clone := orig.Clone()

	clone.Students[0].FullName = "Changed Name"
	clone.Fees[0].Status = "CHANGED"
	clone.Settings.Messaging.Templates["reminder"] = "changed"
	clone.AcademicYears[0] = "0000-0000"

	if orig.Students[0].FullName == "Changed Name" {
		t.Error("mutating clone students changed the original")
	}
	if orig.Fees[0].Status == "CHANGED" {
		t.Error("mutating clone fees changed the original")
	}
	if orig.Settings.Messaging.Templates["reminder"] == "changed" {
		t.Error("mutating clone templates changed the original")
	}
	if orig.AcademicYears[0] == "0000-0000" {
		t.Error("mutating clone years changed the original")
	}
}

func TestDecodeSnapshot(t *testing.T) {
	t.Run("round trips through encode", func(t *testing.T) {
		t.Parallel()

		in := dugsi.Seed(testutil.FixedClock(), testutil.NewStubIDGenerator())
		in.LastUpdated = 99

		data, err := in.Encode()
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}

		out, err := dugsi.DecodeSnapshot(data)
		if err != nil {
			t.Fatalf("DecodeSnapshot() error = %v", err)
		}
		if out.LastUpdated != 99 {
			t.Errorf("lastUpdated = %d, want 99", out.LastUpdated)
		}
		if len(out.Students) != len(in.Students) {
			t.Errorf("students = %d, want %d", len(out.Students), len(in.Students))
		}
	})

	t.Run("rejects malformed data", func(t *testing.T) {
		t.Parallel()

		if _, err := dugsi.DecodeSnapshot([]byte("{broken")); err == nil {
			t.Error("DecodeSnapshot() accepted malformed input")
		}
	})

	t.Run("nil collections decode as empty", func(t *testing.T) {
		t.Parallel()

		out, err := dugsi.DecodeSnapshot([]byte(`{"dataVersion":8,"currentYear":"2025-2026","lastUpdated":1}`))
		if err != nil {
			t.Fatalf("DecodeSnapshot() error = %v", err)
		}
		if out.Students == nil || out.Fees == nil || out.Attendance == nil {
			t.Error("collections not initialized on decode")
		}
	})
}
