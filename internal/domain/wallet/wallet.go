package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidAmount = errors.New("amount must be positive")

type TransactionKind string

const (
	Credit TransactionKind = "Credit"
	Debit  TransactionKind = "Debit"
)

// Transaction is one immutable ledger entry. Entries are only ever
// appended, never edited or deleted; the balance is their running sum.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"kind"`
	Amount      float64         `json:"amount"`
	Description string          `json:"description"`
	At          time.Time       `json:"at"`
}

// Wallet is a per-user store-credit ledger funded by refunds and spendable
// at checkout.
type Wallet struct {
	UserID       string        `json:"user_id"`
	Balance      float64       `json:"balance"`
	Transactions []Transaction `json:"transactions"`
}

// Apply is the only sanctioned mutation path for a wallet. Credit adds to
// the balance, Debit subtracts. Debit carries no insufficient-balance guard
// here; callers that care (checkout) pre-check before debiting.
func (w *Wallet) Apply(kind TransactionKind, amount float64, description string, now time.Time) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	txn := Transaction{
		ID:          uuid.New().String(),
		Kind:        kind,
		Amount:      amount,
		Description: description,
		At:          now,
	}
	switch kind {
	case Credit:
		w.Balance += amount
	case Debit:
		w.Balance -= amount
	default:
		return Transaction{}, ErrInvalidAmount
	}
	w.Transactions = append(w.Transactions, txn)
	return txn, nil
}

// Repo fetches or creates wallets; GetWallet returns an empty wallet for
// users that have never had one.
type Repo interface {
	GetWallet(ctx context.Context, userID string) (*Wallet, error)
	SaveWallet(ctx context.Context, w *Wallet) error
}

type Service struct {
	repo Repo
	now  func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Get(ctx context.Context, userID string) (*Wallet, error) {
	return s.repo.GetWallet(ctx, userID)
}

// ApplyTransaction fetches the user's wallet, applies one ledger entry and
// persists the result.
func (s *Service) ApplyTransaction(ctx context.Context, userID string, kind TransactionKind, amount float64, description string) (*Wallet, error) {
	w, err := s.repo.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := w.Apply(kind, amount, description, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.SaveWallet(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}
