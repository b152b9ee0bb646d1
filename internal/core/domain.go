package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Registered MemberKind = "registered"
	Guest      MemberKind = "guest"
)

// MaxAmount caps a single transaction's magnitude.
const MaxAmount = 999999

type (
	MemberKind string

	// Member is a group participant. A registered member carries a
	// provider-issued account id; a guest carries a locally synthesized id
	// and keeps its display name as a first-class field rather than
	// encoding it into the identifier.
	Member struct {
		ID          string
		Kind        MemberKind
		DisplayName string
		JoinedAt    time.Time
	}

	Group struct {
		ID        string
		Name      string
		CreatedBy string
		CreatedAt time.Time
	}

	// Split is an explicit per-member share recorded against a transaction.
	Split struct {
		MemberID string
		Amount   float64
	}

	// Transaction is a signed ledger entry. Positive amounts are expenses
	// (the group owes the payer), negative amounts are income (the payer
	// received money on the group's behalf). The sign convention is
	// load-bearing: flipping it inverts every balance.
	Transaction struct {
		ID          string
		GroupID     string
		Description string
		Amount      float64
		PayerID     string
		CreatedBy   string
		CreatedAt   time.Time
		Splits      []Split
	}

	User struct {
		ID           string
		Email        string
		DisplayName  string
		PasswordHash string
		Plan         string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrZeroAmount         = errors.New("amount cannot be zero")
	ErrAmountTooLarge     = errors.New("amount too large")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrEmptyName          = errors.New("empty name")
	ErrNameTooLong        = errors.New("name too long (max 100 characters)")
	ErrMissingPayer       = errors.New("missing payer")
	ErrMissingMember      = errors.New("missing member id")
	ErrMissingCreator     = errors.New("group requires a creator")
	ErrInvalidMemberKind  = errors.New("invalid member kind")
	ErrGuestNeedsName     = errors.New("guest member requires a display name")
)

func (k MemberKind) IsValid() bool {
	return k == Registered || k == Guest
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrMissingMember
	}
	if !m.Kind.IsValid() {
		return ErrInvalidMemberKind
	}
	if m.Kind == Guest && strings.TrimSpace(m.DisplayName) == "" {
		return ErrGuestNeedsName
	}
	return nil
}

func (g Group) Validate() error {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 100 {
		return ErrNameTooLong
	}
	if strings.TrimSpace(g.CreatedBy) == "" {
		return ErrMissingCreator
	}
	return nil
}

func (s Split) Validate() error {
	if strings.TrimSpace(s.MemberID) == "" {
		return ErrMissingMember
	}
	return nil
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if t.Amount == 0 {
		return ErrZeroAmount
	}
	if t.Amount > MaxAmount || t.Amount < -MaxAmount {
		return ErrAmountTooLarge
	}
	if strings.TrimSpace(t.PayerID) == "" {
		return ErrMissingPayer
	}
	for _, s := range t.Splits {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsIncome reports whether the transaction records money received rather
// than spent.
func (t Transaction) IsIncome() bool {
	return t.Amount < 0
}
