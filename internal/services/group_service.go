package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"divvy/internal/core"
	"divvy/internal/log"
	"divvy/internal/storage"
	"divvy/internal/usage"
)

// GroupService manages groups and their rosters.
type GroupService struct {
	store  storage.Store
	gate   *usage.Gate
	ledger *LedgerService
	logger *log.Logger
}

func NewGroupService(store storage.Store, gate *usage.Gate, ledger *LedgerService, logger *log.Logger) *GroupService {
	return &GroupService{
		store:  store,
		gate:   gate,
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentGroup),
	}
}

// CreateGroup creates a group and joins the creator as its first member.
func (s *GroupService) CreateGroup(ctx context.Context, userID, name string) (*core.Group, error) {
	if check := s.gate.CanCreateGroup(ctx, userID); !check.Allowed {
		return nil, &LimitError{Check: check}
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load creator: %w", err)
	}

	group := &core.Group{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		CreatedBy: userID,
		CreatedAt: time.Now().UTC(),
	}
	if err := group.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	owner := core.Member{
		ID:          userID,
		Kind:        core.Registered,
		DisplayName: user.DisplayName,
		JoinedAt:    group.CreatedAt,
	}
	if err := s.store.AddMember(ctx, group.ID, owner); err != nil {
		return nil, fmt.Errorf("join creator: %w", err)
	}

	s.logger.InfoContext(ctx, "group created",
		log.FieldGroupID, group.ID,
		log.FieldUserID, userID,
	)
	return group, nil
}

// GetGroup returns a group the user belongs to.
func (s *GroupService) GetGroup(ctx context.Context, userID, groupID string) (*core.Group, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.GetGroup(ctx, groupID)
}

// ListGroups returns every group the user is a member of, with dashboard
// summaries.
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]core.GroupSummary, error) {
	groups, err := s.store.ListGroupsByMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	summaries := make([]core.GroupSummary, 0, len(groups))
	for _, group := range groups {
		members, err := s.store.ListMembers(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		txns, err := s.store.ListTransactions(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		summaries = append(summaries, core.Summarize(group, members, txns))
	}
	return summaries, nil
}

// RenameGroup changes the name. Creator only.
func (s *GroupService) RenameGroup(ctx context.Context, userID, groupID, name string) error {
	if err := s.requireCreator(ctx, userID, groupID); err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if err := (core.Group{Name: name, CreatedBy: userID}).Validate(); err != nil {
		return err
	}
	return s.store.RenameGroup(ctx, groupID, name)
}

// DeleteGroup removes the group and everything in it. Creator only.
func (s *GroupService) DeleteGroup(ctx context.Context, userID, groupID string) error {
	if err := s.requireCreator(ctx, userID, groupID); err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	s.logger.InfoContext(ctx, "group deleted",
		log.FieldGroupID, groupID,
		log.FieldUserID, userID,
	)
	return nil
}

// ListMembers returns the group roster.
func (s *GroupService) ListMembers(ctx context.Context, userID, groupID string) ([]core.Member, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

// AddGuest adds an unregistered participant to the roster. The guest gets
// a synthesized id; the display name stays its own field. An optional
// initial deposit is recorded as a ledger entry paid by the guest.
func (s *GroupService) AddGuest(ctx context.Context, userID, groupID, displayName string, deposit float64) (*core.Member, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	if check := s.gate.CanAddMember(ctx, userID, groupID); !check.Allowed {
		return nil, &LimitError{Check: check}
	}

	guest := core.Member{
		ID:          "guest_" + uuid.NewString(),
		Kind:        core.Guest,
		DisplayName: strings.TrimSpace(displayName),
		JoinedAt:    time.Now().UTC(),
	}
	if err := guest.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.AddMember(ctx, groupID, guest); err != nil {
		return nil, fmt.Errorf("add guest: %w", err)
	}

	if deposit > 0 {
		_, err := s.ledger.RecordTransaction(ctx, userID, groupID, TransactionInput{
			Description: fmt.Sprintf("Initial Deposit (%s)", guest.DisplayName),
			Amount:      deposit,
			PayerID:     guest.ID,
		})
		if err != nil {
			// The guest is on the roster; the deposit can be re-entered.
			s.logger.ErrorContext(ctx, "failed to record initial deposit",
				log.FieldError, err.Error(),
				log.FieldGroupID, groupID,
				log.FieldMemberID, guest.ID,
			)
		}
	}

	return &guest, nil
}

// JoinGroup adds the registered user to the roster. The roster limit is
// checked against the creator's plan, so an upgraded creator keeps a
// big group open to free joiners.
func (s *GroupService) JoinGroup(ctx context.Context, userID, groupID string) (*core.Member, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	already, err := s.store.IsMember(ctx, groupID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if already {
		return nil, ErrAlreadyMember
	}

	if check := s.gate.CanAddMember(ctx, group.CreatedBy, groupID); !check.Allowed {
		return nil, &LimitError{Check: check}
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load joiner: %w", err)
	}

	member := core.Member{
		ID:          userID,
		Kind:        core.Registered,
		DisplayName: user.DisplayName,
		JoinedAt:    time.Now().UTC(),
	}
	if err := s.store.AddMember(ctx, groupID, member); err != nil {
		return nil, fmt.Errorf("join group: %w", err)
	}

	s.logger.InfoContext(ctx, "member joined",
		log.FieldGroupID, groupID,
		log.FieldUserID, userID,
	)
	return &member, nil
}

// RemoveMember drops a member from the roster. The creator may remove
// anyone but themselves; others may only remove themselves. Historic
// transactions keep referencing the removed id and the balance engine
// recreates its entry on the fly.
func (s *GroupService) RemoveMember(ctx context.Context, userID, groupID, memberID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return err
	}

	if memberID == group.CreatedBy {
		return fmt.Errorf("cannot remove the group creator: %w", ErrForbidden)
	}
	if userID != group.CreatedBy && userID != memberID {
		return ErrForbidden
	}

	return s.store.RemoveMember(ctx, groupID, memberID)
}

func (s *GroupService) requireMember(ctx context.Context, groupID, userID string) error {
	ok, err := s.store.IsMember(ctx, groupID, userID)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}

func (s *GroupService) requireCreator(ctx context.Context, userID, groupID string) error {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy != userID {
		return ErrForbidden
	}
	return nil
}
