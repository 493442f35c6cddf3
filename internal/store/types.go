package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type ContractStatus string

const (
	StatusAwaitingPayment ContractStatus = "AwaitingPayment"
	StatusActive          ContractStatus = "Active"
	StatusPaymentFailed   ContractStatus = "PaymentFailed"
	StatusCancelled       ContractStatus = "Cancelled"
	StatusExpired         ContractStatus = "Expired"
)

// Label is the customer-facing Vietnamese name of the status.
func (s ContractStatus) Label() string {
	switch s {
	case StatusAwaitingPayment:
		return "Chờ thanh toán"
	case StatusActive:
		return "Hiệu lực"
	case StatusPaymentFailed:
		return "Thanh toán thất bại"
	case StatusCancelled:
		return "Đã hủy"
	case StatusExpired:
		return "Hết hạn"
	}
	return string(s)
}

func (s ContractStatus) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusActive, StatusPaymentFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type Contract struct {
	ID             string            `json:"id"`
	ContractNumber string            `json:"contract_number"`
	UserID         string            `json:"user_id"`
	ProductName    string            `json:"product_name"`
	Premium        int64             `json:"premium"`
	Status         ContractStatus    `json:"status"`
	StatusLabel    string            `json:"status_label,omitempty"`
	PaymentDetails map[string]string `json:"payment_details,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Attempt maps a per-initiation transaction reference to its contract.
type Attempt struct {
	TxnRef       string     `json:"txn_ref"`
	ContractID   string     `json:"contract_id"`
	Amount       int64      `json:"amount"` // nominal
	CreatedAt    time.Time  `json:"created_at"`
	ResponseCode string     `json:"response_code,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
