// Package gateway предоставляет клиент для внешнего платёжного шлюза.
//
// Шлюз принимает запрос на списание синхронно, но отвечает только о факте
// приёма: реальный исход платежа сообщается позже асинхронным callback или
// запросом статуса по ключу корреляции reference.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
type Client struct {
	baseURL    string
	account    string
	httpClient *http.Client
}

// ChargeRequest описывает исходящий запрос на списание.
type ChargeRequest struct {
	Account   string `json:"account"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Phone     string `json:"phone"`
	Reference string `json:"reference"`
	Narration string `json:"narration"`
}

// SubmitResult описывает исход отправки запроса на списание. Accepted
// означает лишь то, что шлюз принял запрос в обработку, а не что платёж
// состоялся.
type SubmitResult struct {
	Accepted bool
	Message  string
}

// ChargeStatus описывает ответ шлюза о состоянии списания.
type ChargeStatus struct {
	Reference     string  `json:"reference"`
	Status        string  `json:"status"`
	TransactionID *string `json:"transaction_id,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// NewClient создаёт HTTP-клиент шлюза по указанному адресу. Транспортные
// ретраи безопасны: запрос идемпотентен на стороне шлюза благодаря reference.
func NewClient(baseURL, account string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		account:    account,
		httpClient: rc.StandardClient(),
	}
}

func (c *Client) base() string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base
}

// SubmitCharge отправляет запрос на списание. Ответ шлюза 2xx означает, что
// запрос принят в обработку; 4xx — что шлюз его отклонил (возвращается
// SubmitResult с Accepted=false и причиной). Ошибка возвращается только при
// недоступности шлюза или неожиданном ответе.
func (c *Client) SubmitCharge(ctx context.Context, req ChargeRequest) (*SubmitResult, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("gateway client not configured")
	}

	if req.Account == "" {
		req.Account = c.account
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := c.base() + "/api/v1/charges"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		return &SubmitResult{Accepted: true, Message: payload.Message}, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		msg := payload.Message
		if msg == "" {
			msg = fmt.Sprintf("gateway rejected submission: %d", resp.StatusCode)
		}
		return &SubmitResult{Accepted: false, Message: msg}, nil
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

// GetChargeStatus запрашивает состояние списания по ключу корреляции.
// Вторым значением возвращается HTTP-статус ответа шлюза; для 404 результат
// равен nil без ошибки.
func (c *Client) GetChargeStatus(ctx context.Context, reference string) (*ChargeStatus, int, error) {
	if c == nil || c.baseURL == "" {
		return nil, 0, fmt.Errorf("gateway client not configured")
	}

	url := fmt.Sprintf("%s/api/v1/charges/%s", c.base(), reference)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result ChargeStatus
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}

	return &result, resp.StatusCode, nil
}
