package models

import "time"

// Account holds funds that withdrawals are debited from. The balance is
// NUMERIC(15,2) in the database and is only ever mutated by the
// conditional-decrement debit in the withdrawal service.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Balance   string    `json:"balance" db:"balance"` // decimal string, 2dp
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AccountBalance is the balance-enquiry projection served over HTTP and
// cached in redis.
type AccountBalance struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}
