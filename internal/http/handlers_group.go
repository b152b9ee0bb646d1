package http

import (
	"net/http"
	"time"

	"divvy/internal/core"
)

type groupView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type groupSummaryView struct {
	groupView
	MemberCount int     `json:"member_count"`
	EntryCount  int     `json:"entry_count"`
	TotalSpent  float64 `json:"total_spent"`
	TotalIncome float64 `json:"total_income"`
}

type memberView struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	DisplayName string    `json:"display_name"`
	JoinedAt    time.Time `json:"joined_at"`
}

func viewGroup(g *core.Group) groupView {
	return groupView{
		ID:        g.ID,
		Name:      g.Name,
		CreatedBy: g.CreatedBy,
		CreatedAt: g.CreatedAt,
	}
}

func viewMember(m core.Member) memberView {
	return memberView{
		ID:          m.ID,
		Kind:        string(m.Kind),
		DisplayName: m.DisplayName,
		JoinedAt:    m.JoinedAt,
	}
}

type createGroupRequest struct {
	Name string `json:"name"`
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

type addGuestRequest struct {
	DisplayName string `json:"display_name"`
	// Deposit is an optional opening contribution, parsed like any
	// other amount.
	Deposit string `json:"deposit,omitempty"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	group, err := s.groups.CreateGroup(r.Context(), UserID(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewGroup(group))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.groups.ListGroups(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]groupSummaryView, 0, len(summaries))
	for _, sum := range summaries {
		views = append(views, groupSummaryView{
			groupView:   viewGroup(&sum.Group),
			MemberCount: sum.MemberCount,
			EntryCount:  sum.EntryCount,
			TotalSpent:  sum.TotalSpent,
			TotalIncome: sum.TotalIncome,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.GetGroup(r.Context(), UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewGroup(group))
}

func (s *Server) handleRenameGroup(w http.ResponseWriter, r *http.Request) {
	var req renameGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	groupID := r.PathValue("id")
	if err := s.groups.RenameGroup(r.Context(), UserID(r.Context()), groupID, req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	if err := s.groups.DeleteGroup(r.Context(), UserID(r.Context()), groupID); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateGroup(groupID)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.groups.ListMembers(r.Context(), UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]memberView, 0, len(members))
	for _, m := range members {
		views = append(views, viewMember(m))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	member, err := s.groups.JoinGroup(r.Context(), UserID(r.Context()), groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateGroup(groupID)
	writeJSON(w, http.StatusCreated, viewMember(*member))
}

func (s *Server) handleAddGuest(w http.ResponseWriter, r *http.Request) {
	var req addGuestRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var deposit float64
	if req.Deposit != "" {
		var err error
		deposit, err = core.ParseAmount(req.Deposit)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	groupID := r.PathValue("id")
	guest, err := s.groups.AddGuest(r.Context(), UserID(r.Context()), groupID, req.DisplayName, deposit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateGroup(groupID)
	writeJSON(w, http.StatusCreated, viewMember(*guest))
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("id")
	memberID := r.PathValue("memberID")
	if err := s.groups.RemoveMember(r.Context(), UserID(r.Context()), groupID, memberID); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateGroup(groupID)
	writeJSON(w, http.StatusNoContent, nil)
}
