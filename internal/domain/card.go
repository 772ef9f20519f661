/**
 * @description
 * Card domain model. The full PAN and CVV are stored encrypted and only the
 * last four digits are ever exposed through the API; the encrypted fields
 * never appear in JSON output.
 */

package domain

import "time"

// Card types.
const (
	CardTypeDebit   = "debit"
	CardTypeCredit  = "credit"
	CardTypePrepaid = "prepaid"
)

// Card statuses.
const (
	CardStatusActive   = "active"
	CardStatusInactive = "inactive"
	CardStatusBlocked  = "blocked"
	CardStatusExpired  = "expired"
)

// Card represents an issued card. EncryptedPAN and EncryptedCVV hold
// AES-256-GCM ciphertext produced by the card service.
type Card struct {
	ID             int64     `json:"id"`
	AccountID      int64     `json:"account_id"`
	Last4          string    `json:"card_number_last4"`
	EncryptedPAN   string    `json:"-"`
	EncryptedCVV   string    `json:"-"`
	CardholderName string    `json:"cardholder_name"`
	CardType       string    `json:"card_type"`
	Status         string    `json:"status"`
	ExpiryMonth    int       `json:"expiry_month"`
	ExpiryYear     int       `json:"expiry_year"`
	IssuedAt       time.Time `json:"issued_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IssueCardRequest is the DTO for issuing a new card.
type IssueCardRequest struct {
	AccountID      int64  `json:"account_id"`
	CardholderName string `json:"cardholder_name"`
	CardType       string `json:"card_type"`
}

// UpdateCardStatusRequest is the DTO for card status transitions.
type UpdateCardStatusRequest struct {
	Status string `json:"status"`
}

// ValidCardType reports whether t is a supported card type.
func ValidCardType(t string) bool {
	return t == CardTypeDebit || t == CardTypeCredit || t == CardTypePrepaid
}

// ValidCardStatus reports whether s is a supported card status.
func ValidCardStatus(s string) bool {
	switch s {
	case CardStatusActive, CardStatusInactive, CardStatusBlocked, CardStatusExpired:
		return true
	}
	return false
}
