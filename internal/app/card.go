/**
 * @description
 * Card issuance and lifecycle. Generated card numbers are sixteen digits
 * with the 400000 BIN and a valid Luhn check digit; the PAN and CVV are
 * encrypted at rest and only the last four digits ever leave the service.
 */

package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mannykwaning/banking-app/internal/domain"
	"github.com/mannykwaning/banking-app/internal/store"
)

const (
	cardBIN           = "400000"
	maxActiveCards    = 5
	cardValidityYears = 3
)

// luhnCheckDigit computes the check digit that makes digits+d pass Luhn.
func luhnCheckDigit(digits string) int {
	sum := 0
	// Walk right to left; the rightmost payload digit is doubled.
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

func randomDigits(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}

// newCardNumber generates a sixteen-digit PAN: BIN, nine random digits, and
// the Luhn check digit.
func newCardNumber() (string, error) {
	body, err := randomDigits(9)
	if err != nil {
		return "", err
	}
	payload := cardBIN + body
	return payload + strconv.Itoa(luhnCheckDigit(payload)), nil
}

// IssueCard creates a new active card against an account. An account may
// hold at most five active cards at a time.
func (s *Service) IssueCard(ctx context.Context, req domain.IssueCardRequest) (*domain.Card, error) {
	if req.CardholderName == "" {
		return nil, &domain.ErrValidation{Field: "cardholder_name", Message: "must not be empty"}
	}
	if !domain.ValidCardType(req.CardType) {
		return nil, &domain.ErrValidation{Field: "card_type", Message: "must be debit, credit or prepaid"}
	}
	if _, err := s.repo.FindAccountByID(ctx, req.AccountID); err != nil {
		return nil, mapAccountLookupErr(err, req.AccountID)
	}

	active, err := s.repo.CountActiveCardsByAccountID(ctx, req.AccountID)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "active card count", Err: err}
	}
	if active >= maxActiveCards {
		return nil, &domain.ErrConflict{Message: fmt.Sprintf("account already holds %d active cards", maxActiveCards)}
	}

	pan, err := newCardNumber()
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "card number generation", Err: err}
	}
	cvv, err := randomDigits(3)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "cvv generation", Err: err}
	}
	encryptedPAN, err := s.cardCipher.Encrypt(pan)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "card encryption", Err: err}
	}
	encryptedCVV, err := s.cardCipher.Encrypt(cvv)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "cvv encryption", Err: err}
	}

	expiry := time.Now().UTC().AddDate(cardValidityYears, 0, 0)
	card, err := s.repo.CreateCard(ctx, &domain.Card{
		AccountID:      req.AccountID,
		CardholderName: req.CardholderName,
		CardType:       req.CardType,
		Last4:          pan[len(pan)-4:],
		EncryptedPAN:   encryptedPAN,
		EncryptedCVV:   encryptedCVV,
		ExpiryMonth:    int(expiry.Month()),
		ExpiryYear:     expiry.Year(),
		Status:         domain.CardStatusActive,
	})
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "card creation", Err: err}
	}
	s.logger.Info("card issued",
		zap.Int64("card_id", card.ID),
		zap.Int64("account_id", card.AccountID),
		zap.String("card_type", card.CardType),
	)
	return card, nil
}

// GetCard fetches a card by id.
func (s *Service) GetCard(ctx context.Context, cardID int64) (*domain.Card, error) {
	card, err := s.repo.FindCardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			return nil, &domain.ErrNotFound{Resource: "card", ID: strconv.FormatInt(cardID, 10)}
		}
		return nil, &domain.ErrPersistence{Op: "card lookup", Err: err}
	}
	return card, nil
}

// ListCards returns all cards issued against an account.
func (s *Service) ListCards(ctx context.Context, accountID int64) ([]domain.Card, error) {
	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return nil, mapAccountLookupErr(err, accountID)
	}
	cards, err := s.repo.FindCardsByAccountID(ctx, accountID)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "card listing", Err: err}
	}
	return cards, nil
}

// UpdateCardStatus transitions a card between active, inactive, blocked and
// expired. Expired is terminal.
func (s *Service) UpdateCardStatus(ctx context.Context, cardID int64, status string) (*domain.Card, error) {
	if !domain.ValidCardStatus(status) {
		return nil, &domain.ErrValidation{Field: "status", Message: "must be active, inactive, blocked or expired"}
	}
	current, err := s.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.CardStatusExpired {
		return nil, &domain.ErrConflict{Message: "expired cards cannot change status"}
	}

	card, err := s.repo.UpdateCardStatus(ctx, cardID, status)
	if err != nil {
		return nil, &domain.ErrPersistence{Op: "card status update", Err: err}
	}
	s.logger.Info("card status updated",
		zap.Int64("card_id", cardID),
		zap.String("status", status),
	)
	return card, nil
}
