// Package usage enforces per-plan resource limits.
package usage

import (
	"context"
	"time"

	"divvy/internal/log"
	"divvy/internal/storage"
)

// Plan names as stored on the user row.
const (
	PlanFree     = "free"
	PlanPro      = "pro"
	PlanBusiness = "business"
)

// Limits holds the caps for a plan. Zero means unlimited.
type Limits struct {
	MaxGroups          int
	MaxMonthlyTxns     int
	MaxMembersPerGroup int
}

// LimitsFor returns the caps for a plan name. Unknown plans get the free
// caps.
func LimitsFor(plan string) Limits {
	switch plan {
	case PlanPro, PlanBusiness:
		return Limits{}
	default:
		return Limits{
			MaxGroups:          3,
			MaxMonthlyTxns:     50,
			MaxMembersPerGroup: 5,
		}
	}
}

// Unlimited reports whether the limits impose no caps.
func (l Limits) Unlimited() bool {
	return l == Limits{}
}

// Check is the outcome of a gate decision.
type Check struct {
	Allowed bool
	Current int
	Limit   int
	Reason  string
}

// Summary is the usage overview shown on the account page.
type Summary struct {
	Plan        string
	Limits      Limits
	GroupCount  int
	MonthlyTxns int
	RefreshedAt time.Time
}

// Gate answers "may this user create another X" questions. Every check
// fails open: if the plan or the counts cannot be loaded the action is
// allowed, since blocking paying-intent users on an internal error is
// worse than letting a free user slip past a cap.
type Gate struct {
	store  storage.Store
	logger *log.Logger
}

func NewGate(store storage.Store, logger *log.Logger) *Gate {
	return &Gate{
		store:  store,
		logger: logger.WithComponent(log.ComponentUsage),
	}
}

// CanCreateGroup checks the group cap for the user's plan.
func (g *Gate) CanCreateGroup(ctx context.Context, userID string) Check {
	limits, ok := g.limitsFor(ctx, userID)
	if !ok || limits.Unlimited() {
		return allowed()
	}

	current, err := g.store.CountGroupsByCreator(ctx, userID)
	if err != nil {
		g.warnFailOpen(ctx, "count groups", userID, err)
		return allowed()
	}
	if current >= limits.MaxGroups {
		return denied(current, limits.MaxGroups, "group limit reached, upgrade to create more groups")
	}
	return allowed()
}

// CanAddTransaction checks the monthly transaction cap. The month window
// is the calendar month in UTC.
func (g *Gate) CanAddTransaction(ctx context.Context, userID string) Check {
	limits, ok := g.limitsFor(ctx, userID)
	if !ok || limits.Unlimited() {
		return allowed()
	}

	current, err := g.store.CountTransactionsByCreatorSince(ctx, userID, StartOfMonth(time.Now()))
	if err != nil {
		g.warnFailOpen(ctx, "count transactions", userID, err)
		return allowed()
	}
	if current >= limits.MaxMonthlyTxns {
		return denied(current, limits.MaxMonthlyTxns, "monthly transaction limit reached")
	}
	return allowed()
}

// CanAddMember checks the per-group member cap.
func (g *Gate) CanAddMember(ctx context.Context, userID, groupID string) Check {
	limits, ok := g.limitsFor(ctx, userID)
	if !ok || limits.Unlimited() {
		return allowed()
	}

	current, err := g.store.CountMembers(ctx, groupID)
	if err != nil {
		g.warnFailOpen(ctx, "count members", userID, err)
		return allowed()
	}
	if current >= limits.MaxMembersPerGroup {
		return denied(current, limits.MaxMembersPerGroup, "member limit reached for this group")
	}
	return allowed()
}

// Summarize returns the user's plan, caps and current counts. Counts come
// from the background-refreshed cache when present, falling back to live
// queries.
func (g *Gate) Summarize(ctx context.Context, userID string) (*Summary, error) {
	user, err := g.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Plan:   user.Plan,
		Limits: LimitsFor(user.Plan),
	}

	if cached, err := g.store.GetUsageCounts(ctx, userID); err == nil {
		summary.GroupCount = cached.GroupCount
		summary.MonthlyTxns = cached.MonthlyTxns
		summary.RefreshedAt = cached.RefreshedAt
		return summary, nil
	}

	counts, err := g.Measure(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary.GroupCount = counts.GroupCount
	summary.MonthlyTxns = counts.MonthlyTxns
	summary.RefreshedAt = counts.RefreshedAt
	return summary, nil
}

// Measure computes live counts for a user, for the cache refresher.
func (g *Gate) Measure(ctx context.Context, userID string) (storage.UsageCounts, error) {
	groups, err := g.store.CountGroupsByCreator(ctx, userID)
	if err != nil {
		return storage.UsageCounts{}, err
	}
	txns, err := g.store.CountTransactionsByCreatorSince(ctx, userID, StartOfMonth(time.Now()))
	if err != nil {
		return storage.UsageCounts{}, err
	}
	return storage.UsageCounts{
		UserID:      userID,
		GroupCount:  groups,
		MonthlyTxns: txns,
		RefreshedAt: time.Now().UTC(),
	}, nil
}

func (g *Gate) limitsFor(ctx context.Context, userID string) (Limits, bool) {
	user, err := g.store.GetUserByID(ctx, userID)
	if err != nil {
		g.warnFailOpen(ctx, "load plan", userID, err)
		return Limits{}, false
	}
	return LimitsFor(user.Plan), true
}

func (g *Gate) warnFailOpen(ctx context.Context, op, userID string, err error) {
	g.logger.WarnContext(ctx, "usage check failed, allowing action",
		log.FieldOperation, op,
		log.FieldUserID, userID,
		log.FieldError, err.Error(),
	)
}

// StartOfMonth returns midnight UTC on the first of t's month.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func allowed() Check {
	return Check{Allowed: true}
}

func denied(current, limit int, reason string) Check {
	return Check{Allowed: false, Current: current, Limit: limit, Reason: reason}
}
