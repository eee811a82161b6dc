package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/Lakerunner/internal/domain"
)

func TestHTTPTranslator_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/translate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req translateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Text != "top 5 cities by profit" {
			t.Errorf("text not forwarded: %q", req.Text)
		}
		json.NewEncoder(w).Encode(translateResponse{
			Query: &domain.StructuredQuery{
				Metrics: []string{"sum(profit)"},
				GroupBy: "city",
				Limit:   5,
			},
		})
	}))
	defer srv.Close()

	tr := NewHTTPTranslator(srv.URL)
	sq, err := tr.Translate(context.Background(), "top 5 cities by profit")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if sq.GroupBy != "city" || sq.Limit != 5 {
		t.Errorf("unexpected query: %+v", sq)
	}
}

func TestHTTPTranslator_Unprocessable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(translateResponse{Reason: "unknown field: sellers"})
	}))
	defer srv.Close()

	tr := NewHTTPTranslator(srv.URL)
	_, err := tr.Translate(context.Background(), "top sellers")

	var ue *UnderstandingError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnderstandingError, got %v", err)
	}
	if ue.Reason != "unknown field: sellers" {
		t.Errorf("reason = %q", ue.Reason)
	}
}

// Транслятор вернул 200 с пустым запросом — это тоже непонимание,
// а не приглашение выполнить запрос по умолчанию.
func TestHTTPTranslator_EmptyQueryIsUnderstandingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(translateResponse{})
	}))
	defer srv.Close()

	tr := NewHTTPTranslator(srv.URL)
	_, err := tr.Translate(context.Background(), "whatever")

	var ue *UnderstandingError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnderstandingError, got %v", err)
	}
}

func TestHTTPTranslator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTPTranslator(srv.URL)
	_, err := tr.Translate(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}

	// 500 — это не непонимание текста
	var ue *UnderstandingError
	if errors.As(err, &ue) {
		t.Error("server error must not be an UnderstandingError")
	}
}
