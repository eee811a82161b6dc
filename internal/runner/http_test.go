package runner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Lakerunner/internal/domain"
)

func TestHTTPClient_Start(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/v1/jobs/raw-to-cleaned-etl/runs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		params, _ := body["params"].(map[string]any)
		if params["source"] != "s3://lake/raw/" {
			t.Errorf("params not forwarded: %v", params)
		}

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"run_id": "jr_0123"})
	}))
	defer srv.Close()

	client := NewJobClient(srv.URL)
	handle, err := client.Start(context.Background(), "raw-to-cleaned-etl", map[string]any{
		"source": "s3://lake/raw/",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if handle != "jr_0123" {
		t.Errorf("expected handle jr_0123, got %s", handle)
	}
}

func TestHTTPClient_StartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "job not found"},
		})
	}))
	defer srv.Close()

	client := NewJobClient(srv.URL)
	if _, err := client.Start(context.Background(), "missing-job", nil); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestHTTPClient_PollStates(t *testing.T) {
	tests := []struct {
		name      string
		response  pollResponse
		wantState PollState
		wantClass domain.FailureClass
	}{
		{"running", pollResponse{State: "RUNNING"}, StateRunning, ""},
		{"starting maps to running", pollResponse{State: "STARTING"}, StateRunning, ""},
		{"succeeded", pollResponse{State: "SUCCEEDED"}, StateSucceeded, ""},
		{"transient failure", pollResponse{State: "FAILED", Reason: "Rate exceeded"},
			StateFailed, domain.FailureTransient},
		{"permanent failure", pollResponse{State: "FAILED", Reason: "AccessDenied"},
			StateFailed, domain.FailurePermanent},
		{"timeout is failed", pollResponse{State: "TIMEOUT"},
			StateFailed, domain.FailureTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/jobs/runs/jr_42" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				json.NewEncoder(w).Encode(tt.response)
			}))
			defer srv.Close()

			client := NewJobClient(srv.URL)
			result, err := client.Poll(context.Background(), "jr_42")
			if err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if result.State != tt.wantState {
				t.Errorf("state = %s, want %s", result.State, tt.wantState)
			}
			if tt.wantState == StateFailed && result.Class != tt.wantClass {
				t.Errorf("class = %s, want %s", result.Class, tt.wantClass)
			}
		})
	}
}

func TestHTTPClient_PollUnknownState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pollResponse{State: "WAT"})
	}))
	defer srv.Close()

	client := NewJobClient(srv.URL)
	if _, err := client.Poll(context.Background(), "jr_42"); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestHTTPClient_CancelConflictOK(t *testing.T) {
	// 409 означает, что job уже терминален — это не ошибка
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	client := NewCrawlerClient(srv.URL)
	if err := client.Cancel(context.Background(), "cr_7"); err != nil {
		t.Fatalf("Cancel on 409 should succeed, got %v", err)
	}
}

func TestHTTPClient_CrawlerResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/crawlers/cleaned-crawler/runs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"run_id": "cr_1"})
	}))
	defer srv.Close()

	client := NewCrawlerClient(srv.URL)
	if _, err := client.Start(context.Background(), "cleaned-crawler", nil); err != nil {
		t.Fatalf("Start: %v", err)
	}
}
