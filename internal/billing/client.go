// Package billing реализует клиент серверных функций платёжного бэкенда:
// создание сессии оплаты, открытие портала самообслуживания и проверка
// завершённой сессии. Все вызовы ограничены таймаутом, истечение которого
// отличимо от прочих ошибок транспорта.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Ошибки-маркеры платёжного бэкенда.
var (
	// ErrDuplicateSubscription бэкенд отклонил создание сессии: активная
	// подписка уже существует (HTTP 409).
	ErrDuplicateSubscription = errors.New("duplicate active subscription")
	// ErrTimeout вызов не уложился в отведённый таймаут.
	ErrTimeout = errors.New("billing request timed out")
)

// Client клиент платёжного бэкенда.
type Client struct {
	baseURL    string
	secret     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient создаёт новый клиент платёжного бэкенда.
func NewClient(baseURL, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		secret:     secret,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	url := c.baseURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(ctx context.Context, path string, body, result any) (int, error) {
	const op = "billing.do"
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, path, body)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%s: %w", op, ErrTimeout)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return resp.StatusCode, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("%s: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}

// CreateCheckoutSession создаёт сессию оплаты тарифа. HTTP 409 от бэкенда
// означает уже существующую активную подписку и возвращается как
// ErrDuplicateSubscription.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CreateCheckoutRequest) (*CheckoutSession, error) {
	const op = "billing.CreateCheckoutSession"
	var session CheckoutSession
	status, err := c.do(ctx, "/stripe-checkout", req, &session)
	if err != nil {
		if status == http.StatusConflict {
			return nil, fmt.Errorf("%s: %w", op, ErrDuplicateSubscription)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &session, nil
}

// CreatePortalSession открывает сессию портала самообслуживания клиента.
func (c *Client) CreatePortalSession(ctx context.Context, customerID string) (*PortalSession, error) {
	const op = "billing.CreatePortalSession"
	var portal PortalSession
	if _, err := c.do(ctx, "/create-portal-session", CreatePortalRequest{CustomerID: customerID}, &portal); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &portal, nil
}

// VerifySession проверяет завершённую сессию оплаты после возврата
// пользователя из внешнего платёжного потока.
func (c *Client) VerifySession(ctx context.Context, sessionID string) (*VerifyResult, error) {
	const op = "billing.VerifySession"
	var result VerifyResult
	if _, err := c.do(ctx, "/verify-session", VerifyRequest{SessionID: sessionID}, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}
