package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"divvy/internal/core"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store used in tests and local development.
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]*core.User
	groups   map[string]*core.Group
	members  map[string][]core.Member
	txns     map[string]*core.Transaction
	exported map[string]string
	usage    map[string]UsageCounts
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[string]*core.User),
		groups:   make(map[string]*core.Group),
		members:  make(map[string][]core.Member),
		txns:     make(map[string]*core.Transaction),
		exported: make(map[string]string),
		usage:    make(map[string]UsageCounts),
	}
}

func (s *MemStore) Close() error { return nil }

// --- users ---

func (s *MemStore) CreateUser(_ context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *MemStore) GetUserByEmail(_ context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (s *MemStore) GetUserByID(_ context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	clone := *u
	return &clone, nil
}

func (s *MemStore) UpdateUserPlan(_ context.Context, userID, plan string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	u.Plan = plan
	return nil
}

func (s *MemStore) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// --- groups ---

func (s *MemStore) CreateGroup(_ context.Context, group *core.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; ok {
		return fmt.Errorf("group %s: %w", group.ID, ErrDuplicate)
	}
	clone := *group
	s.groups[group.ID] = &clone
	return nil
}

func (s *MemStore) GetGroup(_ context.Context, id string) (*core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	clone := *g
	return &clone, nil
}

func (s *MemStore) ListGroupsByMember(_ context.Context, memberID string) ([]core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var groups []core.Group
	for groupID, members := range s.members {
		for _, m := range members {
			if m.ID == memberID {
				if g, ok := s.groups[groupID]; ok {
					groups = append(groups, *g)
				}
				break
			}
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].CreatedAt.After(groups[j].CreatedAt)
	})
	return groups, nil
}

func (s *MemStore) RenameGroup(_ context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	g.Name = name
	return nil
}

func (s *MemStore) DeleteGroup(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	delete(s.groups, id)
	delete(s.members, id)
	for txnID, txn := range s.txns {
		if txn.GroupID == id {
			delete(s.txns, txnID)
			delete(s.exported, txnID)
		}
	}
	return nil
}

func (s *MemStore) CountGroupsByCreator(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, g := range s.groups {
		if g.CreatedBy == userID {
			n++
		}
	}
	return n, nil
}

// --- members ---

func (s *MemStore) AddMember(_ context.Context, groupID string, member core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[groupID] {
		if m.ID == member.ID {
			return fmt.Errorf("member %s: %w", member.ID, ErrDuplicate)
		}
	}
	s.members[groupID] = append(s.members[groupID], member)
	return nil
}

func (s *MemStore) RemoveMember(_ context.Context, groupID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := s.members[groupID]
	for i, m := range members {
		if m.ID == memberID {
			s.members[groupID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("member %s: %w", memberID, ErrNotFound)
}

func (s *MemStore) ListMembers(_ context.Context, groupID string) ([]core.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]core.Member, len(s.members[groupID]))
	copy(members, s.members[groupID])
	return members, nil
}

func (s *MemStore) IsMember(_ context.Context, groupID, memberID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members[groupID] {
		if m.ID == memberID {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) CountMembers(_ context.Context, groupID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[groupID]), nil
}

// --- transactions ---

func (s *MemStore) CreateTransaction(_ context.Context, txn *core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[txn.ID]; ok {
		return fmt.Errorf("transaction %s: %w", txn.ID, ErrDuplicate)
	}
	s.txns[txn.ID] = cloneTxn(txn)
	return nil
}

func (s *MemStore) GetTransaction(_ context.Context, id string) (*core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return cloneTxn(txn), nil
}

func (s *MemStore) UpdateTransaction(_ context.Context, txn *core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[txn.ID]; !ok {
		return fmt.Errorf("transaction %s: %w", txn.ID, ErrNotFound)
	}
	s.txns[txn.ID] = cloneTxn(txn)
	delete(s.exported, txn.ID)
	return nil
}

func (s *MemStore) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	delete(s.txns, id)
	delete(s.exported, id)
	return nil
}

func (s *MemStore) ListTransactions(_ context.Context, groupID string) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var txns []core.Transaction
	for _, txn := range s.txns {
		if txn.GroupID == groupID {
			txns = append(txns, *cloneTxn(txn))
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].ID < txns[j].ID
	})
	return txns, nil
}

func (s *MemStore) CountTransactionsByCreatorSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, txn := range s.txns {
		if txn.CreatedBy == userID && !txn.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) ListPendingExport(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var txns []core.Transaction
	for id, txn := range s.txns {
		if _, done := s.exported[id]; !done {
			txns = append(txns, *cloneTxn(txn))
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.Before(txns[j].CreatedAt)
	})
	if len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

func (s *MemStore) MarkExported(_ context.Context, txnID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[txnID]; !ok {
		return fmt.Errorf("transaction %s: %w", txnID, ErrNotFound)
	}
	s.exported[txnID] = ref
	return nil
}

// --- usage cache ---

func (s *MemStore) UpsertUsageCounts(_ context.Context, counts UsageCounts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[counts.UserID] = counts
	return nil
}

func (s *MemStore) GetUsageCounts(_ context.Context, userID string) (*UsageCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts, ok := s.usage[userID]
	if !ok {
		return nil, fmt.Errorf("usage counts for %s: %w", userID, ErrNotFound)
	}
	return &counts, nil
}

func cloneTxn(txn *core.Transaction) *core.Transaction {
	clone := *txn
	clone.Splits = make([]core.Split, len(txn.Splits))
	copy(clone.Splits, txn.Splits)
	return &clone
}
