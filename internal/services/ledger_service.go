package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"divvy/internal/amqp"
	"divvy/internal/core"
	"divvy/internal/log"
	"divvy/internal/storage"
	"divvy/internal/usage"
)

// EventPublisher is the slice of the AMQP client the ledger needs.
// Publishing is best-effort: the database is the source of truth and a
// lost event only delays the spreadsheet mirror.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// TransactionInput is the user-supplied part of a ledger entry. Amount
// is signed: positive for expenses, negative for income.
type TransactionInput struct {
	Description string
	Amount      float64
	PayerID     string
	Splits      []core.Split
}

// BalanceSheet is the computed view of who owes whom.
type BalanceSheet struct {
	GroupID   string
	Balances  []core.MemberBalance
	Transfers []core.Transfer
}

// LedgerService records transactions and computes balances.
type LedgerService struct {
	store     storage.Store
	gate      *usage.Gate
	publisher EventPublisher
	logger    *log.Logger
}

func NewLedgerService(store storage.Store, gate *usage.Gate, publisher EventPublisher, logger *log.Logger) *LedgerService {
	return &LedgerService{
		store:     store,
		gate:      gate,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// RecordTransaction validates and stores a new ledger entry, then
// notifies the export pipeline.
func (s *LedgerService) RecordTransaction(ctx context.Context, userID, groupID string, input TransactionInput) (*core.Transaction, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if ok, err := s.store.IsMember(ctx, groupID, input.PayerID); err == nil && !ok {
		return nil, fmt.Errorf("payer: %w", ErrNotMember)
	}

	if check := s.gate.CanAddTransaction(ctx, userID); !check.Allowed {
		return nil, &LimitError{Check: check}
	}

	txn := &core.Transaction{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		Description: input.Description,
		Amount:      input.Amount,
		PayerID:     input.PayerID,
		CreatedBy:   userID,
		CreatedAt:   time.Now().UTC(),
		Splits:      input.Splits,
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}
	s.warnOnSplitMismatch(ctx, txn)

	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction recorded",
		log.NewFields().
			WithGroup(groupID).
			WithTransaction(txn.ID, txn.Description, txn.Amount, len(txn.Splits)).
			WithOperation(log.OpCreate).
			ToSlice()...)

	s.publish(ctx, amqp.EventTransactionCreated, txn.ID, groupID)
	return txn, nil
}

// UpdateTransaction rewrites an existing entry. Only the member who
// recorded it or the group creator may change it.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, txnID string, input TransactionInput) (*core.Transaction, error) {
	txn, err := s.store.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEditor(ctx, userID, txn); err != nil {
		return nil, err
	}

	txn.Description = input.Description
	txn.Amount = input.Amount
	txn.PayerID = input.PayerID
	txn.Splits = input.Splits
	if err := txn.Validate(); err != nil {
		return nil, err
	}
	s.warnOnSplitMismatch(ctx, txn)

	if err := s.store.UpdateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	s.publish(ctx, amqp.EventTransactionUpdated, txn.ID, txn.GroupID)
	return txn, nil
}

// DeleteTransaction removes an entry. Same permission rule as updates.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, txnID string) error {
	txn, err := s.store.GetTransaction(ctx, txnID)
	if err != nil {
		return err
	}
	if err := s.requireEditor(ctx, userID, txn); err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, txnID); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.publish(ctx, amqp.EventTransactionDeleted, txnID, txn.GroupID)
	return nil
}

// GetTransaction returns a single entry the user is allowed to see.
func (s *LedgerService) GetTransaction(ctx context.Context, userID, txnID string) (*core.Transaction, error) {
	txn, err := s.store.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, txn.GroupID, userID); err != nil {
		return nil, err
	}
	return txn, nil
}

// ListTransactions returns the group's ledger, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID, groupID string) ([]core.Transaction, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, groupID)
}

// GetBalances loads the group's full snapshot and recomputes every
// balance from scratch. Roster and ledger load concurrently.
func (s *LedgerService) GetBalances(ctx context.Context, userID, groupID string) (*BalanceSheet, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}

	var (
		members []core.Member
		txns    []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = s.store.ListMembers(gctx, groupID)
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = s.store.ListTransactions(gctx, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load group snapshot: %w", err)
	}

	balances := core.ComputeBalances(members, txns)

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.ID] = m.DisplayName
	}

	sheet := &BalanceSheet{
		GroupID:   groupID,
		Balances:  core.RankBalances(balances, names),
		Transfers: core.SuggestTransfers(balances),
	}
	return sheet, nil
}

func (s *LedgerService) requireMember(ctx context.Context, groupID, userID string) error {
	ok, err := s.store.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func (s *LedgerService) requireEditor(ctx context.Context, userID string, txn *core.Transaction) error {
	if err := s.requireMember(ctx, txn.GroupID, userID); err != nil {
		return err
	}
	if txn.CreatedBy == userID {
		return nil
	}
	group, err := s.store.GetGroup(ctx, txn.GroupID)
	if err != nil {
		return err
	}
	if group.CreatedBy != userID {
		return ErrForbidden
	}
	return nil
}

// Splits that disagree with the amount are stored and applied as given;
// the mismatch is only surfaced in the logs.
func (s *LedgerService) warnOnSplitMismatch(ctx context.Context, txn *core.Transaction) {
	if diff, ok := core.SplitSumMismatch(*txn); ok {
		s.logger.WarnContext(ctx, "split sum does not match amount",
			log.FieldTxnID, txn.ID,
			log.FieldAmount, txn.Amount,
			"difference", diff,
		)
	}
}

func (s *LedgerService) publish(ctx context.Context, eventType, txnID, groupID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerEvent(ctx, amqp.NewLedgerEvent(eventType, txnID, groupID)); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish ledger event",
			log.FieldError, err.Error(),
			log.FieldEventType, eventType,
			log.FieldTxnID, txnID,
		)
	}
}
