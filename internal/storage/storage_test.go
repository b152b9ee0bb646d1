package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"divvy/internal/core"
)

// Both implementations run the same suite.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("groups and members", func(t *testing.T) { testGroups(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("export bookkeeping", func(t *testing.T) { testExport(t, newStore(t)) })
	t.Run("usage counts", func(t *testing.T) { testUsageCounts(t, newStore(t)) })
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestMemStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store { return NewMemStore() })
}

func seedUser(t *testing.T, store Store, id, email string) *core.User {
	t.Helper()
	user := &core.User{
		ID:           id,
		Email:        email,
		DisplayName:  "User " + id,
		PasswordHash: "x",
		Plan:         "free",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func seedGroup(t *testing.T, store Store, id, createdBy string) *core.Group {
	t.Helper()
	group := &core.Group{
		ID:        id,
		Name:      "Group " + id,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.CreateGroup(context.Background(), group); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	return group
}

func testUsers(t *testing.T, store Store) {
	ctx := context.Background()
	user := seedUser(t, store, "u1", "alice@example.com")

	got, err := store.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != user.ID || got.Plan != "free" {
		t.Errorf("got %+v", got)
	}

	if _, err := store.GetUserByID(ctx, "u1"); err != nil {
		t.Errorf("GetUserByID: %v", err)
	}
	if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID(missing) = %v, want ErrNotFound", err)
	}

	if err := store.UpdateUserPlan(ctx, "u1", "pro"); err != nil {
		t.Fatalf("UpdateUserPlan: %v", err)
	}
	got, _ = store.GetUserByID(ctx, "u1")
	if got.Plan != "pro" {
		t.Errorf("plan = %q, want pro", got.Plan)
	}

	seedUser(t, store, "u2", "bob@example.com")
	ids, err := store.ListUserIDs(ctx)
	if err != nil {
		t.Fatalf("ListUserIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("ListUserIDs = %v, want 2 ids", ids)
	}
}

func testGroups(t *testing.T, store Store) {
	ctx := context.Background()
	user := seedUser(t, store, "u1", "alice@example.com")
	group := seedGroup(t, store, "g1", user.ID)

	now := time.Now().UTC().Truncate(time.Second)
	owner := core.Member{ID: user.ID, Kind: core.Registered, DisplayName: user.DisplayName, JoinedAt: now}
	guest := core.Member{ID: "guest_1", Kind: core.Guest, DisplayName: "Sam", JoinedAt: now.Add(time.Second)}
	if err := store.AddMember(ctx, group.ID, owner); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := store.AddMember(ctx, group.ID, guest); err != nil {
		t.Fatalf("AddMember guest: %v", err)
	}

	members, err := store.ListMembers(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[1].Kind != core.Guest || members[1].DisplayName != "Sam" {
		t.Errorf("guest round-trip: %+v", members[1])
	}

	if ok, _ := store.IsMember(ctx, group.ID, user.ID); !ok {
		t.Error("IsMember(owner) = false")
	}
	if ok, _ := store.IsMember(ctx, group.ID, "stranger"); ok {
		t.Error("IsMember(stranger) = true")
	}
	if n, _ := store.CountMembers(ctx, group.ID); n != 2 {
		t.Errorf("CountMembers = %d, want 2", n)
	}

	groups, err := store.ListGroupsByMember(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListGroupsByMember: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != group.ID {
		t.Errorf("ListGroupsByMember = %+v", groups)
	}

	if err := store.RenameGroup(ctx, group.ID, "Renamed"); err != nil {
		t.Fatalf("RenameGroup: %v", err)
	}
	got, _ := store.GetGroup(ctx, group.ID)
	if got.Name != "Renamed" {
		t.Errorf("name = %q, want Renamed", got.Name)
	}

	if n, _ := store.CountGroupsByCreator(ctx, user.ID); n != 1 {
		t.Errorf("CountGroupsByCreator = %d, want 1", n)
	}

	if err := store.RemoveMember(ctx, group.ID, guest.ID); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if err := store.RemoveMember(ctx, group.ID, guest.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveMember = %v, want ErrNotFound", err)
	}

	if err := store.DeleteGroup(ctx, group.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if _, err := store.GetGroup(ctx, group.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGroup after delete = %v, want ErrNotFound", err)
	}
	if members, _ := store.ListMembers(ctx, group.ID); len(members) != 0 {
		t.Errorf("members survived group delete: %+v", members)
	}
}

func testTransactions(t *testing.T, store Store) {
	ctx := context.Background()
	user := seedUser(t, store, "u1", "alice@example.com")
	group := seedGroup(t, store, "g1", user.ID)

	txn := &core.Transaction{
		ID:          "t1",
		GroupID:     group.ID,
		Description: "dinner",
		Amount:      90,
		PayerID:     user.ID,
		CreatedBy:   user.ID,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		Splits: []core.Split{
			{MemberID: user.ID, Amount: 45},
			{MemberID: "guest_1", Amount: 45},
		},
	}
	if err := store.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	got, err := store.GetTransaction(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Amount != 90 || len(got.Splits) != 2 {
		t.Errorf("round-trip: %+v", got)
	}

	got.Description = "team dinner"
	got.Splits = []core.Split{{MemberID: user.ID, Amount: 90}}
	if err := store.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	got, _ = store.GetTransaction(ctx, "t1")
	if got.Description != "team dinner" || len(got.Splits) != 1 {
		t.Errorf("after update: %+v", got)
	}

	income := &core.Transaction{
		ID:          "t2",
		GroupID:     group.ID,
		Description: "refund",
		Amount:      -30,
		PayerID:     user.ID,
		CreatedBy:   user.ID,
		CreatedAt:   txn.CreatedAt.Add(time.Second),
	}
	if err := store.CreateTransaction(ctx, income); err != nil {
		t.Fatalf("CreateTransaction income: %v", err)
	}

	txns, err := store.ListTransactions(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txns))
	}
	if txns[0].ID != "t2" {
		t.Errorf("expected newest first, got %s", txns[0].ID)
	}
	if txns[0].Amount != -30 {
		t.Errorf("negative amount round-trip: %v", txns[0].Amount)
	}

	n, err := store.CountTransactionsByCreatorSince(ctx, user.ID, txn.CreatedAt)
	if err != nil {
		t.Fatalf("CountTransactionsByCreatorSince: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	if n, _ := store.CountTransactionsByCreatorSince(ctx, user.ID, time.Now().Add(time.Hour)); n != 0 {
		t.Errorf("future count = %d, want 0", n)
	}

	if err := store.DeleteTransaction(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := store.GetTransaction(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTransaction after delete = %v, want ErrNotFound", err)
	}
	if err := store.DeleteTransaction(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func testExport(t *testing.T, store Store) {
	ctx := context.Background()
	user := seedUser(t, store, "u1", "alice@example.com")
	group := seedGroup(t, store, "g1", user.ID)

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"t1", "t2", "t3"} {
		txn := &core.Transaction{
			ID:          id,
			GroupID:     group.ID,
			Description: "entry " + id,
			Amount:      10,
			PayerID:     user.ID,
			CreatedBy:   user.ID,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateTransaction(ctx, txn); err != nil {
			t.Fatalf("CreateTransaction %s: %v", id, err)
		}
	}

	pending, err := store.ListPendingExport(ctx, 2)
	if err != nil {
		t.Fatalf("ListPendingExport: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "t1" {
		t.Fatalf("pending = %+v, want t1 first of 2", pending)
	}

	if err := store.MarkExported(ctx, "t1", "sheet!A1"); err != nil {
		t.Fatalf("MarkExported: %v", err)
	}
	pending, _ = store.ListPendingExport(ctx, 10)
	if len(pending) != 2 {
		t.Errorf("pending after mark = %d, want 2", len(pending))
	}
	for _, txn := range pending {
		if txn.ID == "t1" {
			t.Error("t1 still pending after MarkExported")
		}
	}

	if err := store.MarkExported(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkExported(missing) = %v, want ErrNotFound", err)
	}
}

func testUsageCounts(t *testing.T, store Store) {
	ctx := context.Background()
	user := seedUser(t, store, "u1", "alice@example.com")

	if _, err := store.GetUsageCounts(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUsageCounts before upsert = %v, want ErrNotFound", err)
	}

	counts := UsageCounts{
		UserID:      user.ID,
		GroupCount:  2,
		MonthlyTxns: 17,
		RefreshedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.UpsertUsageCounts(ctx, counts); err != nil {
		t.Fatalf("UpsertUsageCounts: %v", err)
	}

	got, err := store.GetUsageCounts(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUsageCounts: %v", err)
	}
	if got.GroupCount != 2 || got.MonthlyTxns != 17 {
		t.Errorf("got %+v", got)
	}

	counts.MonthlyTxns = 18
	if err := store.UpsertUsageCounts(ctx, counts); err != nil {
		t.Fatalf("second UpsertUsageCounts: %v", err)
	}
	got, _ = store.GetUsageCounts(ctx, user.ID)
	if got.MonthlyTxns != 18 {
		t.Errorf("MonthlyTxns = %d, want 18", got.MonthlyTxns)
	}
}
