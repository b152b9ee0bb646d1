// Package storage defines the persistence interface and its SQLite and
// in-memory implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"divvy/internal/core"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// UsageCounts is a cached snapshot of a user's plan-limited resources.
type UsageCounts struct {
	UserID      string
	GroupCount  int
	MonthlyTxns int
	RefreshedAt time.Time
}

// Store is the persistence port. All reads return ErrNotFound (possibly
// wrapped) when the row does not exist.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *core.User) error
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	GetUserByID(ctx context.Context, id string) (*core.User, error)
	UpdateUserPlan(ctx context.Context, userID, plan string) error
	ListUserIDs(ctx context.Context) ([]string, error)

	// Groups
	CreateGroup(ctx context.Context, group *core.Group) error
	GetGroup(ctx context.Context, id string) (*core.Group, error)
	ListGroupsByMember(ctx context.Context, memberID string) ([]core.Group, error)
	RenameGroup(ctx context.Context, id, name string) error
	DeleteGroup(ctx context.Context, id string) error
	CountGroupsByCreator(ctx context.Context, userID string) (int, error)

	// Members
	AddMember(ctx context.Context, groupID string, member core.Member) error
	RemoveMember(ctx context.Context, groupID, memberID string) error
	ListMembers(ctx context.Context, groupID string) ([]core.Member, error)
	IsMember(ctx context.Context, groupID, memberID string) (bool, error)
	CountMembers(ctx context.Context, groupID string) (int, error)

	// Transactions. CreateTransaction persists the transaction and its
	// splits atomically; DeleteTransaction removes splits before the row.
	CreateTransaction(ctx context.Context, txn *core.Transaction) error
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListTransactions(ctx context.Context, groupID string) ([]core.Transaction, error)
	CountTransactionsByCreatorSince(ctx context.Context, userID string, since time.Time) (int, error)

	// Export bookkeeping for the sheets pipeline.
	ListPendingExport(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkExported(ctx context.Context, txnID, ref string) error

	// Usage cache, refreshed in the background.
	UpsertUsageCounts(ctx context.Context, counts UsageCounts) error
	GetUsageCounts(ctx context.Context, userID string) (*UsageCounts, error)

	Close() error
}
