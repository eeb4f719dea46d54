package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction — сырая транзакция из связанного банковского счёта.
type Transaction struct {
	Name   string
	Amount decimal.Decimal
	Date   time.Time
}
