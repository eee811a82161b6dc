package runner

import (
	"testing"

	"github.com/shaiso/Lakerunner/internal/domain"
)

func TestClassify_Transient(t *testing.T) {
	reasons := []string{
		"Request timed out after 300s",
		"ThrottlingException: Rate exceeded",
		"HTTP 429: Too Many Requests",
		"service unavailable, retry later",
		"read tcp: connection reset by peer",
		"Concurrent runs exceeded for job raw-to-cleaned-etl",
	}

	for _, reason := range reasons {
		if got := Classify(reason); got != domain.FailureTransient {
			t.Errorf("Classify(%q) = %s, want TRANSIENT", reason, got)
		}
	}
}

func TestClassify_Permanent(t *testing.T) {
	reasons := []string{
		"AccessDeniedException: not authorized to perform glue:StartJobRun",
		"EntityNotFoundException: job not found",
		"SyntaxError in recipe step 3",
		"", // пустая причина — неизвестно, значит permanent
	}

	for _, reason := range reasons {
		if got := Classify(reason); got != domain.FailurePermanent {
			t.Errorf("Classify(%q) = %s, want PERMANENT", reason, got)
		}
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	if Classify("TIMEOUT waiting for slot") != domain.FailureTransient {
		t.Error("classification must ignore case")
	}
}
