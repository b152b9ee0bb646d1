// Package worker runs the background pipelines: mirroring ledger
// entries to the spreadsheet and refreshing cached usage counters.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"divvy/internal/amqp"
	"divvy/internal/core"
	"divvy/internal/export"
	"divvy/internal/log"
	"divvy/internal/storage"
)

// ExportWorker mirrors ledger entries into an external spreadsheet. It
// consumes AMQP events for low latency and periodically scans for
// entries whose events were lost.
type ExportWorker struct {
	store     storage.Store
	writer    export.LedgerWriter
	batchSize int
	interval  time.Duration
	logger    *log.Logger
}

func NewExportWorker(store storage.Store, writer export.LedgerWriter, batchSize int, interval time.Duration, logger *log.Logger) *ExportWorker {
	return &ExportWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger.WithComponent(log.ComponentExport),
	}
}

// HandleLedgerEvent processes a single event from the queue. Deletes
// are only logged: the spreadsheet is an append-only journal and keeps
// rows for removed entries.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	w.logger.InfoContext(ctx, "processing ledger event",
		log.FieldEventType, event.Type,
		log.FieldTxnID, event.TransactionID,
	)

	if event.Type == amqp.EventTransactionDeleted {
		return nil
	}

	txn, err := w.store.GetTransaction(ctx, event.TransactionID)
	if errors.Is(err, storage.ErrNotFound) {
		// Entry already deleted between publish and consume.
		w.logger.WarnContext(ctx, "transaction gone before export",
			log.FieldTxnID, event.TransactionID,
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}

	return w.exportTransaction(ctx, txn)
}

// ProcessPending exports entries whose events were never delivered.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	return w.drainPending(ctx, w.batchSize)
}

// StartupCheck drains a larger backlog once at worker start, covering
// downtime between runs.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	return w.drainPending(ctx, w.batchSize*5)
}

// Run blocks, draining the pending backlog on a fixed interval until
// the context is cancelled.
func (w *ExportWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.ProcessPending(ctx); err != nil {
				w.logger.ErrorContext(ctx, "pending export scan failed",
					log.FieldError, err.Error(),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *ExportWorker) drainPending(ctx context.Context, limit int) error {
	pending, err := w.store.ListPendingExport(ctx, limit)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "exporting pending entries", "count", len(pending))

	exported := 0
	for i := range pending {
		if err := w.exportTransaction(ctx, &pending[i]); err != nil {
			w.logger.ErrorContext(ctx, "export failed",
				log.FieldTxnID, pending[i].ID,
				log.FieldError, err.Error(),
			)
			continue
		}
		exported++
	}

	w.logger.InfoContext(ctx, "pending export batch done",
		"total", len(pending),
		"exported", exported,
		"errors", len(pending)-exported,
	)
	return nil
}

func (w *ExportWorker) exportTransaction(ctx context.Context, txn *core.Transaction) error {
	group, err := w.store.GetGroup(ctx, txn.GroupID)
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}

	payerName := txn.PayerID
	members, err := w.store.ListMembers(ctx, txn.GroupID)
	if err == nil {
		for _, m := range members {
			if m.ID == txn.PayerID {
				payerName = m.DisplayName
				break
			}
		}
	}

	ref, err := w.writer.Append(ctx, export.LedgerEntry{
		TransactionID: txn.ID,
		GroupID:       txn.GroupID,
		GroupName:     group.Name,
		Description:   txn.Description,
		Amount:        txn.Amount,
		PayerName:     payerName,
		CreatedAt:     txn.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("append to ledger sheet: %w", err)
	}

	if err := w.store.MarkExported(ctx, txn.ID, ref); err != nil {
		// The row was written; losing the mark only risks a duplicate
		// on the next scan.
		w.logger.ErrorContext(ctx, "failed to mark entry exported",
			log.FieldTxnID, txn.ID,
			log.FieldError, err.Error(),
		)
		return nil
	}

	w.logger.InfoContext(ctx, "entry exported",
		log.FieldTxnID, txn.ID,
		log.FieldSheetsRef, ref,
		log.FieldAmount, txn.Amount,
	)
	return nil
}
