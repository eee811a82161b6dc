package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Lakerunner/internal/domain"
)

// HTTPTranslator — клиент внешнего сервиса трансляции текста в запрос.
//
// Сервис отвечает 200 со StructuredQuery, либо 422 с причиной, когда
// текст понять не удалось. 422 превращается в *UnderstandingError —
// Router отдаст его вызывающей стороне без выполнения запроса.
type HTTPTranslator struct {
	baseURL string
	http    *http.Client
}

// NewHTTPTranslator создаёт клиент транслятора.
func NewHTTPTranslator(baseURL string) *HTTPTranslator {
	return &HTTPTranslator{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type translateRequest struct {
	Text string `json:"text"`
}

type translateResponse struct {
	Query  *domain.StructuredQuery `json:"query,omitempty"`
	Reason string                  `json:"reason,omitempty"`
}

// Translate отправляет текст транслятору.
func (t *HTTPTranslator) Translate(ctx context.Context, text string) (*domain.StructuredQuery, error) {
	body, err := json.Marshal(translateRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/api/v1/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call translator: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var tr translateResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
			return nil, fmt.Errorf("decode translate response: %w", err)
		}
		if tr.Query == nil || len(tr.Query.Metrics) == 0 {
			// Пустой запрос от транслятора эквивалентен непониманию:
			// выполнять "запрос по умолчанию" запрещено
			return nil, &UnderstandingError{Text: text, Reason: "translator returned empty query"}
		}
		return tr.Query, nil

	case http.StatusUnprocessableEntity:
		var tr translateResponse
		if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil || tr.Reason == "" {
			return nil, &UnderstandingError{Text: text, Reason: "ambiguous or unsupported phrasing"}
		}
		return nil, &UnderstandingError{Text: text, Reason: tr.Reason}

	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("translator returned HTTP %d: %s", resp.StatusCode, string(raw))
	}
}

var _ Translator = (*HTTPTranslator)(nil)
