// Package plaid — клиент HTTP API провайдера банковских данных (Plaid).
// Поддерживаются создание link token, обмен public token и выгрузка транзакций.
package plaid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/subscription-tracker/internal/config"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

const (
	dateLayout = "2006-01-02"
	// pageSize — максимальный размер страницы /transactions/get.
	pageSize = 500
	// maxPages ограничивает выгрузку, если провайдер завышает total_transactions.
	maxPages = 50
)

var baseURLs = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// ErrNotConfigured возвращается, если не заданы client_id и secret.
var ErrNotConfigured = errors.New("plaid keys not set")

// Error — ответ провайдера с кодом, отличным от 2xx.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("plaid: status %d: %s", e.StatusCode, e.Body)
}

// Client вызывает API провайдера.
type Client struct {
	clientID     string
	secret       string
	apiURL       string
	clientName   string
	products     []string
	countryCodes []string
	httpClient   *http.Client
}

// NewClient создаёт клиент по конфигу. BaseURL имеет приоритет над Env.
func NewClient(cfg config.Plaid) (*Client, error) {
	const op = "plaid.NewClient"
	apiURL := cfg.BaseURL
	if apiURL == "" {
		var ok bool
		if apiURL, ok = baseURLs[cfg.Env]; !ok {
			return nil, fmt.Errorf("%s: unknown env %q", op, cfg.Env)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		clientID:     cfg.ClientID,
		secret:       cfg.Secret,
		apiURL:       strings.TrimRight(apiURL, "/"),
		clientName:   cfg.ClientName,
		products:     cfg.Products,
		countryCodes: cfg.CountryCodes,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// CreateLinkToken создаёт link token для пользователя.
func (c *Client) CreateLinkToken(ctx context.Context, clientUserID string) (string, error) {
	const op = "plaid.CreateLinkToken"
	var resp linkTokenResponse
	err := c.post(ctx, "/link/token/create", linkTokenRequest{
		User:         linkUser{ClientUserID: clientUserID},
		ClientName:   c.clientName,
		Products:     c.products,
		CountryCodes: c.countryCodes,
		Language:     "en",
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return resp.LinkToken, nil
}

// ExchangePublicToken меняет public token на access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, error) {
	const op = "plaid.ExchangePublicToken"
	var resp exchangeResponse
	if err := c.post(ctx, "/item/public_token/exchange", exchangeRequest{PublicToken: publicToken}, &resp); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return resp.AccessToken, nil
}

// Transactions выгружает все транзакции за период [start, end] постранично.
func (c *Client) Transactions(ctx context.Context, accessToken string, start, end time.Time) ([]models.Transaction, error) {
	const op = "plaid.Transactions"

	out := make([]models.Transaction, 0)
	for page := 0; page < maxPages; page++ {
		var resp transactionsResponse
		err := c.post(ctx, "/transactions/get", transactionsRequest{
			AccessToken: accessToken,
			StartDate:   start.Format(dateLayout),
			EndDate:     end.Format(dateLayout),
			Options:     transactionsOptions{Count: pageSize, Offset: len(out)},
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		for _, t := range resp.Transactions {
			txn, err := t.toModel()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			out = append(out, txn)
		}
		if len(resp.Transactions) == 0 || len(out) >= resp.TotalTransactions {
			break
		}
	}
	return out, nil
}

func (t Transaction) toModel() (models.Transaction, error) {
	amount, err := decimal.NewFromString(t.Amount.String())
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: amount: %w", t.TransactionID, err)
	}
	date, err := time.Parse(dateLayout, t.Date)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: date: %w", t.TransactionID, err)
	}
	name := t.Name
	if t.MerchantName != nil && *t.MerchantName != "" {
		name = *t.MerchantName
	}
	return models.Transaction{Name: name, Amount: amount, Date: date}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	if c.clientID == "" || c.secret == "" {
		return ErrNotConfigured
	}

	req, err := c.newRequest(ctx, path, payload)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(result)
}

// newRequest добавляет client_id и secret к телу запроса.
func (c *Client) newRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	body["client_id"] = c.clientID
	body["secret"] = c.secret

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}
