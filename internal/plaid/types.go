package plaid

import "encoding/json"

type linkUser struct {
	ClientUserID string `json:"client_user_id"`
}

type linkTokenRequest struct {
	User         linkUser `json:"user"`
	ClientName   string   `json:"client_name"`
	Products     []string `json:"products"`
	CountryCodes []string `json:"country_codes"`
	Language     string   `json:"language"`
}

type linkTokenResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

type exchangeRequest struct {
	PublicToken string `json:"public_token"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type transactionsOptions struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

type transactionsRequest struct {
	AccessToken string              `json:"access_token"`
	StartDate   string              `json:"start_date"`
	EndDate     string              `json:"end_date"`
	Options     transactionsOptions `json:"options"`
}

// Transaction — транзакция в формате провайдера. Сумма положительна для списаний.
type Transaction struct {
	TransactionID string      `json:"transaction_id"`
	Name          string      `json:"name"`
	MerchantName  *string     `json:"merchant_name"`
	Amount        json.Number `json:"amount"`
	Date          string      `json:"date"`
}

type transactionsResponse struct {
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	RequestID         string        `json:"request_id"`
}
