package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go driver, no CGO

	"divvy/internal/core"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at dbPath, creating parent
// directories and applying migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	// Writers queue behind each other instead of failing fast.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- users ---

func (s *SQLiteStore) CreateUser(ctx context.Context, user *core.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash, plan, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.Plan, user.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, plan, created_at FROM users WHERE email = ?`,
		email,
	))
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, password_hash, plan, created_at FROM users WHERE id = ?`,
		id,
	))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*core.User, error) {
	var (
		user      core.User
		createdAt int64
	)
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &user.Plan, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &user, nil
}

func (s *SQLiteStore) UpdateUserPlan(ctx context.Context, userID, plan string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET plan = ? WHERE id = ?`, plan, userID)
	if err != nil {
		return fmt.Errorf("update user plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return ids, nil
}

// --- groups ---

func (s *SQLiteStore) CreateGroup(ctx context.Context, group *core.Group) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, name, created_by, created_at) VALUES (?, ?, ?, ?)`,
		group.ID, group.Name, group.CreatedBy, group.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetGroup(ctx context.Context, id string) (*core.Group, error) {
	var (
		group     core.Group
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM groups WHERE id = ?`, id,
	).Scan(&group.ID, &group.Name, &group.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	group.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &group, nil
}

func (s *SQLiteStore) ListGroupsByMember(ctx context.Context, memberID string) ([]core.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.created_by, g.created_at
		 FROM groups g
		 JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.member_id = ?
		 ORDER BY g.created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []core.Group
	for rows.Next() {
		var (
			g         core.Group
			createdAt int64
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.CreatedAt = time.Unix(createdAt, 0).UTC()
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func (s *SQLiteStore) RenameGroup(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE groups SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteGroup removes the group and, via cascading foreign keys, its
// members, transactions and splits.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("group %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CountGroupsByCreator(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM groups WHERE created_by = ?`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return n, nil
}

// --- members ---

func (s *SQLiteStore) AddMember(ctx context.Context, groupID string, member core.Member) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO group_members (group_id, member_id, kind, display_name, joined_at)
		 VALUES (?, ?, ?, ?, ?)`,
		groupID, member.ID, string(member.Kind), member.DisplayName, member.JoinedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveMember(ctx context.Context, groupID, memberID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = ? AND member_id = ?`,
		groupID, memberID,
	)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListMembers(ctx context.Context, groupID string) ([]core.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, kind, display_name, joined_at
		 FROM group_members WHERE group_id = ? ORDER BY joined_at, member_id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var (
			m        core.Member
			kind     string
			joinedAt int64
		)
		if err := rows.Scan(&m.ID, &kind, &m.DisplayName, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.Kind = core.MemberKind(kind)
		m.JoinedAt = time.Unix(joinedAt, 0).UTC()
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (s *SQLiteStore) IsMember(ctx context.Context, groupID, memberID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND member_id = ?`,
		groupID, memberID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) CountMembers(ctx context.Context, groupID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_members WHERE group_id = ?`, groupID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

// --- usage cache ---

func (s *SQLiteStore) UpsertUsageCounts(ctx context.Context, counts UsageCounts) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_counts (user_id, group_count, monthly_txns, refreshed_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   group_count = excluded.group_count,
		   monthly_txns = excluded.monthly_txns,
		   refreshed_at = excluded.refreshed_at`,
		counts.UserID, counts.GroupCount, counts.MonthlyTxns, counts.RefreshedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert usage counts: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUsageCounts(ctx context.Context, userID string) (*UsageCounts, error) {
	var (
		counts      UsageCounts
		refreshedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, group_count, monthly_txns, refreshed_at FROM usage_counts WHERE user_id = ?`,
		userID,
	).Scan(&counts.UserID, &counts.GroupCount, &counts.MonthlyTxns, &refreshedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("usage counts for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get usage counts: %w", err)
	}
	counts.RefreshedAt = time.Unix(refreshedAt, 0).UTC()
	return &counts, nil
}
