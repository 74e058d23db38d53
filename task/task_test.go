package task

import "testing"

func TestProblem_IsEmpty_MatchesLen(t *testing.T) {
	tests := []struct {
		name  string
		cases []TestCase
	}{
		{"no cases", nil},
		{"one case", []TestCase{{Input: "1", Answer: "1"}}},
		{"three cases", []TestCase{{}, {}, {}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Problem{TestCases: tt.cases}
			if p.IsEmpty() != (p.Len() == 0) {
				t.Errorf("IsEmpty() = %v, Len() = %d; boundary violated", p.IsEmpty(), p.Len())
			}
		})
	}
}

func TestJudgeResult_String(t *testing.T) {
	tests := []struct {
		result JudgeResult
		want   string
	}{
		{AC, "AC"},
		{WA, "WA"},
		{TLE, "TLE"},
		{MLE, "MLE"},
		{OLE, "OLE"},
		{RE, "RE"},
		{CE, "CE"},
	}

	for _, tt := range tests {
		if got := tt.result.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.result, got, tt.want)
		}
	}
}
