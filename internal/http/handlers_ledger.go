package http

import (
	"net/http"
	"time"

	"divvy/internal/core"
	"divvy/internal/log"
	"divvy/internal/services"
)

type splitInput struct {
	MemberID string `json:"member_id"`
	Amount   string `json:"amount"`
}

type transactionRequest struct {
	Description string       `json:"description"`
	Amount      string       `json:"amount"`
	PayerID     string       `json:"payer_id"`
	Splits      []splitInput `json:"splits,omitempty"`
}

type splitView struct {
	MemberID string  `json:"member_id"`
	Amount   float64 `json:"amount"`
}

type transactionView struct {
	ID          string      `json:"id"`
	GroupID     string      `json:"group_id"`
	Description string      `json:"description"`
	Amount      float64     `json:"amount"`
	Kind        string      `json:"kind"`
	PayerID     string      `json:"payer_id"`
	CreatedBy   string      `json:"created_by"`
	CreatedAt   time.Time   `json:"created_at"`
	Splits      []splitView `json:"splits,omitempty"`
}

func viewTransaction(t *core.Transaction) transactionView {
	kind := "expense"
	if t.IsIncome() {
		kind = "income"
	}
	v := transactionView{
		ID:          t.ID,
		GroupID:     t.GroupID,
		Description: t.Description,
		Amount:      t.Amount,
		Kind:        kind,
		PayerID:     t.PayerID,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
	}
	for _, sp := range t.Splits {
		v.Splits = append(v.Splits, splitView{MemberID: sp.MemberID, Amount: sp.Amount})
	}
	return v
}

type balanceView struct {
	MemberID    string  `json:"member_id"`
	DisplayName string  `json:"display_name"`
	Amount      float64 `json:"amount"`
	Settled     bool    `json:"settled"`
}

type transferView struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

type balanceSheetView struct {
	GroupID   string         `json:"group_id"`
	Balances  []balanceView  `json:"balances"`
	Transfers []transferView `json:"transfers"`
}

func viewBalanceSheet(sheet *services.BalanceSheet) balanceSheetView {
	v := balanceSheetView{
		GroupID:   sheet.GroupID,
		Balances:  make([]balanceView, 0, len(sheet.Balances)),
		Transfers: make([]transferView, 0, len(sheet.Transfers)),
	}
	for _, b := range sheet.Balances {
		v.Balances = append(v.Balances, balanceView{
			MemberID:    b.MemberID,
			DisplayName: b.DisplayName,
			Amount:      b.Amount,
			Settled:     b.Settled,
		})
	}
	for _, t := range sheet.Transfers {
		v.Transfers = append(v.Transfers, transferView{From: t.From, To: t.To, Amount: t.Amount})
	}
	return v
}

// parseInput converts the wire form of an entry into a service input.
// The sign argument is +1 for expenses and -1 for income.
func parseInput(req transactionRequest, sign float64) (services.TransactionInput, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return services.TransactionInput{}, err
	}

	input := services.TransactionInput{
		Description: req.Description,
		Amount:      sign * amount,
		PayerID:     req.PayerID,
	}
	for _, sp := range req.Splits {
		spAmount, err := core.ParseAmount(sp.Amount)
		if err != nil {
			return services.TransactionInput{}, err
		}
		input.Splits = append(input.Splits, core.Split{MemberID: sp.MemberID, Amount: sign * spAmount})
	}
	return input, nil
}

func (s *Server) recordTransaction(w http.ResponseWriter, r *http.Request, sign float64) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	input, err := parseInput(req, sign)
	if err != nil {
		writeError(w, r, err)
		return
	}

	groupID := r.PathValue("id")
	txn, err := s.ledger.RecordTransaction(r.Context(), UserID(r.Context()), groupID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateGroup(groupID)
	writeJSON(w, http.StatusCreated, viewTransaction(txn))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	s.recordTransaction(w, r, 1)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
	s.recordTransaction(w, r, -1)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txns, err := s.ledger.ListTransactions(r.Context(), UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]transactionView, 0, len(txns))
	for i := range txns {
		views = append(views, viewTransaction(&txns[i]))
	}
	writeJSON(w, http.StatusOK, views)
}

// handleUpdateTransaction rewrites an entry while keeping its original
// direction: an income entry stays an income no matter how the new
// amount is written.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID := UserID(r.Context())
	txnID := r.PathValue("id")

	existing, err := s.ledger.GetTransaction(r.Context(), userID, txnID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sign := 1.0
	if existing.IsIncome() {
		sign = -1.0
	}
	input, err := parseInput(req, sign)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := s.ledger.UpdateTransaction(r.Context(), userID, txnID, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateGroup(txn.GroupID)
	writeJSON(w, http.StatusOK, viewTransaction(txn))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	txnID := r.PathValue("id")

	txn, err := s.ledger.GetTransaction(r.Context(), userID, txnID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), userID, txnID); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateGroup(txn.GroupID)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID := r.PathValue("id")
	userID := UserID(ctx)

	// Membership is checked before serving from cache so evicted
	// members cannot read a stale sheet.
	key := balanceCacheKey(groupID)
	if sheet, found := s.balanceCache.Get(key); found {
		if _, err := s.groups.ListMembers(ctx, userID, groupID); err != nil {
			writeError(w, r, err)
			return
		}
		s.logger.DebugContext(ctx, "balance cache hit", log.FieldGroupID, groupID)
		writeJSON(w, http.StatusOK, viewBalanceSheet(sheet))
		return
	}

	sheet, err := s.ledger.GetBalances(ctx, userID, groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.balanceCache.Set(key, sheet)
	writeJSON(w, http.StatusOK, viewBalanceSheet(sheet))
}
