package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenerationStatus is the lifecycle of a generation task.
// queued -> processing -> done|failed via polling; sent_to_n8n is a terminal
// state entered instead of queued when the request is handed to an automation
// workflow and never reaches the provider.
type GenerationStatus string

const (
	GenerationQueued     GenerationStatus = "queued"
	GenerationProcessing GenerationStatus = "processing"
	GenerationDone       GenerationStatus = "done"
	GenerationFailed     GenerationStatus = "failed"
	GenerationSentToN8N  GenerationStatus = "sent_to_n8n"
)

// IsTerminal reports whether no further transitions are allowed.
func (s GenerationStatus) IsTerminal() bool {
	switch s {
	case GenerationDone, GenerationFailed, GenerationSentToN8N:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentCanceled  PaymentStatus = "canceled"
)

type User struct {
	ID           int64
	TGID         int64
	Balance      decimal.Decimal
	ReferrerTGID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Generation struct {
	ID           string
	TGID         int64
	TemplateID   *string
	Model        string
	AspectRatio  string
	Resolution   string
	OutputFormat string
	Quality      string
	Duration     int
	Sound        bool
	Prompt       string
	Status       GenerationStatus
	TaskID       string
	ResultURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Payment struct {
	ID                string
	TGID              int64
	YooKassaPaymentID string
	Amount            decimal.Decimal
	Tokens            decimal.Decimal
	Status            PaymentStatus
	PlanCode          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Plan struct {
	Code      string
	Label     string
	Tokens    decimal.Decimal
	Amount    decimal.Decimal
	Currency  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Template struct {
	ID              string
	Title           string
	Description     string
	Badge           string
	IsNew           bool
	IsPopular       bool
	DefaultPrompt   string
	PreviewImageURL string
	CreatedAt       time.Time
}

type PromoCode struct {
	ID        int64
	Code      string
	Tokens    decimal.Decimal
	MaxUses   int
	Uses      int
	CreatedAt time.Time
}
