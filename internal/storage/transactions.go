package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"divvy/internal/core"
)

// CreateTransaction persists the transaction and its splits in one
// database transaction so a crash never leaves orphan splits.
func (s *SQLiteStore) CreateTransaction(ctx context.Context, txn *core.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, group_id, description, amount, payer_id, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.GroupID, txn.Description, txn.Amount, txn.PayerID, txn.CreatedBy, txn.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	for _, split := range txn.Splits {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transaction_splits (transaction_id, member_id, amount) VALUES (?, ?, ?)`,
			txn.ID, split.MemberID, split.Amount,
		)
		if err != nil {
			return fmt.Errorf("insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTransaction(ctx context.Context, id string) (*core.Transaction, error) {
	var (
		txn       core.Transaction
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, description, amount, payer_id, created_by, created_at
		 FROM transactions WHERE id = ?`, id,
	).Scan(&txn.ID, &txn.GroupID, &txn.Description, &txn.Amount, &txn.PayerID, &txn.CreatedBy, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	txn.CreatedAt = time.Unix(createdAt, 0).UTC()

	txn.Splits, err = s.loadSplits(ctx, id)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// UpdateTransaction rewrites the row and replaces its splits.
func (s *SQLiteStore) UpdateTransaction(ctx context.Context, txn *core.Transaction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET description = ?, amount = ?, payer_id = ?, exported_at = NULL, export_ref = NULL
		 WHERE id = ?`,
		txn.Description, txn.Amount, txn.PayerID, txn.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", txn.ID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_splits WHERE transaction_id = ?`, txn.ID,
	); err != nil {
		return fmt.Errorf("clear splits: %w", err)
	}
	for _, split := range txn.Splits {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transaction_splits (transaction_id, member_id, amount) VALUES (?, ?, ?)`,
			txn.ID, split.MemberID, split.Amount,
		)
		if err != nil {
			return fmt.Errorf("insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteTransaction removes a transaction and its splits in one database
// transaction, so both go or neither does.
func (s *SQLiteStore) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM transaction_splits WHERE transaction_id = ?`, id,
	); err != nil {
		return fmt.Errorf("delete splits: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, groupID string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, description, amount, payer_id, created_by, created_at
		 FROM transactions WHERE group_id = ? ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}

	for i := range txns {
		txns[i].Splits, err = s.loadSplits(ctx, txns[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return txns, nil
}

func (s *SQLiteStore) CountTransactionsByCreatorSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE created_by = ? AND created_at >= ?`,
		userID, since.Unix(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// ListPendingExport returns the oldest transactions not yet written to
// the external sheet.
func (s *SQLiteStore) ListPendingExport(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, description, amount, payer_id, created_by, created_at
		 FROM transactions WHERE exported_at IS NULL ORDER BY created_at LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	return scanTransactions(rows)
}

func (s *SQLiteStore) MarkExported(ctx context.Context, txnID, ref string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET exported_at = ?, export_ref = ? WHERE id = ?`,
		time.Now().Unix(), ref, txnID,
	)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", txnID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) loadSplits(ctx context.Context, txnID string) ([]core.Split, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_id, amount FROM transaction_splits WHERE transaction_id = ? ORDER BY member_id`,
		txnID,
	)
	if err != nil {
		return nil, fmt.Errorf("load splits: %w", err)
	}
	defer rows.Close()

	var splits []core.Split
	for rows.Next() {
		var split core.Split
		if err := rows.Scan(&split.MemberID, &split.Amount); err != nil {
			return nil, fmt.Errorf("scan split: %w", err)
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate splits: %w", err)
	}
	return splits, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		var (
			txn       core.Transaction
			createdAt int64
		)
		if err := rows.Scan(&txn.ID, &txn.GroupID, &txn.Description, &txn.Amount, &txn.PayerID, &txn.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.CreatedAt = time.Unix(createdAt, 0).UTC()
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}
