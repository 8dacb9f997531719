package models

import "time"

const (
	// MethodPix is the only payment rail currently supported.
	MethodPix = "PIX"

	// DestinationTypeEmail is the only PIX key kind currently accepted.
	DestinationTypeEmail = "email"

	// ReasonInsufficientFunds marks a withdrawal that could not be
	// covered by the account balance. Terminal, never retried.
	ReasonInsufficientFunds = "insufficient_funds"
)

// ScheduleLayout is the wire format for the optional schedule field.
const ScheduleLayout = "2006-01-02 15:04"

// Withdrawal is one withdrawal request and its state machine.
//
// done=true is terminal. processing flips 0->1 only through the
// dispatcher's conditional claim update; it is the sole mutual-exclusion
// mechanism between concurrent worker instances.
type Withdrawal struct {
	ID                  string     `json:"id" db:"id"`
	AccountID           string     `json:"account_id" db:"account_id"`
	Method              string     `json:"method" db:"method"`
	Amount              string     `json:"amount" db:"amount"` // decimal string, 2dp
	Scheduled           bool       `json:"scheduled" db:"scheduled"`
	ScheduledFor        *time.Time `json:"scheduled_for,omitempty" db:"scheduled_for"`
	Done                bool       `json:"done" db:"done"`
	Error               bool       `json:"error" db:"error"`
	ErrorReason         *string    `json:"error_reason,omitempty" db:"error_reason"`
	Processing          bool       `json:"processing" db:"processing"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty" db:"processing_started_at"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`

	Destination *Destination `json:"pix,omitempty" db:"-"`
}

// Destination is the payout target attached 1:1 to a withdrawal,
// inserted in the same transaction and immutable afterwards.
type Destination struct {
	WithdrawalID string    `json:"-" db:"account_withdrawal_id"`
	Type         string    `json:"type" db:"type"`
	Key          string    `json:"key" db:"key"`
	CreatedAt    time.Time `json:"-" db:"created_at"`
	UpdatedAt    time.Time `json:"-" db:"updated_at"`
}

// PixDestination is the request-side destination descriptor.
type PixDestination struct {
	Type string `json:"type" validate:"required,oneof=email"`
	Key  string `json:"key" validate:"required,email"`
}

// WithdrawRequest is the intake payload. Amount travels as a string so
// the value reaches NUMERIC(15,2) without a float round trip; the money
// rule enforces up to two decimal places and the defensive upper bound.
type WithdrawRequest struct {
	Method   string         `json:"method" validate:"required,oneof=PIX"`
	Amount   string         `json:"amount" validate:"required,money"`
	Pix      PixDestination `json:"pix" validate:"required"`
	Schedule string         `json:"schedule,omitempty" validate:"omitempty,datetime=2006-01-02 15:04"`
}

// Outcome statuses returned by the intake service.
const (
	OutcomeScheduled = "scheduled"
	OutcomeDone      = "done"
	OutcomeFailed    = "failed"
)

// WithdrawOutcome is the terminal (or scheduled) result of an intake
// call: Scheduled carries scheduled_for, Done carries processed_at,
// Failed carries the reason.
type WithdrawOutcome struct {
	Status       string     `json:"status"`
	WithdrawalID string     `json:"withdraw_id"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	Amount       string     `json:"amount,omitempty"`
}
