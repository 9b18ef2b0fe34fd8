package runner

import (
	"strings"
	"testing"
)

func TestResult_Code(t *testing.T) {
	tests := []struct {
		r    Result
		want int
	}{
		{Result{Status: StatusNormal}, 0},
		{Result{Status: StatusNonzeroExitStatus, ExitStatus: 3}, 3},
		{Result{Status: StatusSignalled, ExitStatus: 9}, 137},
		{Result{Status: StatusRunnerError}, 1},
		{Result{Status: StatusCancelled, ExitStatus: 9}, 1},
	}
	for _, tc := range tests {
		if got := tc.r.Code(); got != tc.want {
			t.Errorf("%v.Code() = %d, want %d", tc.r, got, tc.want)
		}
	}
}

func TestResult_String(t *testing.T) {
	r := Result{Status: StatusRunnerError, Error: "clone failed"}
	if s := r.String(); !strings.Contains(s, "RunnerFailed(clone failed)") {
		t.Errorf("String() = %q", s)
	}
}

func TestStatus_String(t *testing.T) {
	if s := StatusCancelled.String(); s != "Cancelled" {
		t.Errorf("String() = %q", s)
	}
	if s := Status(100).String(); s != "Invalid" {
		t.Errorf("String() = %q", s)
	}
}

func TestSize_String(t *testing.T) {
	tests := []struct {
		s    Size
		want string
	}{
		{512, "512 B"},
		{2 << 10, "2.0 KiB"},
		{3 << 20, "3.0 MiB"},
		{5 << 30, "5.0 GiB"},
	}
	for _, tc := range tests {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("Size(%d).String() = %q, want %q", uint64(tc.s), got, tc.want)
		}
	}
}
