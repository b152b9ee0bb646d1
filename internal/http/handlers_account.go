package http

import (
	"net/http"
	"time"

	"divvy/internal/usage"
)

type usageView struct {
	Plan        string     `json:"plan"`
	GroupCount  int        `json:"group_count"`
	MonthlyTxns int        `json:"monthly_txns"`
	Limits      limitsView `json:"limits"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

type limitsView struct {
	MaxGroups          int `json:"max_groups"`
	MaxMonthlyTxns     int `json:"max_monthly_txns"`
	MaxMembersPerGroup int `json:"max_members_per_group"`
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.gate.Summarize(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	view := usageView{
		Plan:        summary.Plan,
		GroupCount:  summary.GroupCount,
		MonthlyTxns: summary.MonthlyTxns,
		Limits: limitsView{
			MaxGroups:          summary.Limits.MaxGroups,
			MaxMonthlyTxns:     summary.Limits.MaxMonthlyTxns,
			MaxMembersPerGroup: summary.Limits.MaxMembersPerGroup,
		},
	}
	if !summary.RefreshedAt.IsZero() {
		t := summary.RefreshedAt
		view.RefreshedAt = &t
	}
	writeJSON(w, http.StatusOK, view)
}

type checkoutRequest struct {
	Plan     string `json:"plan"`
	Interval string `json:"interval"`
}

type checkoutView struct {
	URL string `json:"url"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if s.billing == nil || !s.billing.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "billing not configured"})
		return
	}

	var req checkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Plan != usage.PlanPro && req.Plan != usage.PlanBusiness {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown plan"})
		return
	}

	url, err := s.billing.CreateCheckout(r.Context(), UserID(r.Context()), req.Plan, req.Interval)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutView{URL: url})
}
