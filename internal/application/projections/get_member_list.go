package projections

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	accountStore "gymdesk/internal/adapters/storage/account"
	"gymdesk/internal/application/listutil"
	"gymdesk/internal/domain/account"
)

// MemberDirectory is what the member directory sorts and filters by.
// Filters: plan (plan ID) and status ("active" or "none").
var MemberDirectory = listutil.Spec{
	SortColumns: []string{"name", "email", "lastActive", "credits"},
	FilterKeys:  []string{"plan", "status"},
}

// GetMemberListQuery carries query parameters.
type GetMemberListQuery struct {
	listutil.Query
}

// MemberListRow is one member with their current plan and balance.
type MemberListRow struct {
	UserID       string     `json:"userId"`
	DisplayName  string     `json:"displayName"`
	Email        string     `json:"email"`
	PlanID       string     `json:"planId,omitempty"`
	PlanName     string     `json:"planName,omitempty"`
	Credits      int        `json:"credits"` // remaining across active memberships
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
}

// GetMemberListResult carries one page of the directory.
type GetMemberListResult struct {
	Members []MemberListRow   `json:"members"`
	Page    listutil.PageInfo `json:"page"`
}

// GetMemberListDeps holds dependencies for GetMemberList.
type GetMemberListDeps struct {
	AccountStore    AccountStore
	MembershipStore MembershipStore
	PlanStore       PlanStore
}

// QueryGetMemberList returns a searchable, sortable page of members.
// PRE: Query came from MemberDirectory.Parse
// POST: Members holds at most PerPage rows; Page.Total counts every match
// INVARIANT: the plan shown is the first active membership's; staff accounts are never listed
func QueryGetMemberList(ctx context.Context, query GetMemberListQuery, deps GetMemberListDeps) (GetMemberListResult, error) {
	accounts, err := deps.AccountStore.List(ctx, accountStore.ListFilter{Limit: 10000, Role: account.RoleMember})
	if err != nil {
		return GetMemberListResult{}, err
	}

	plans := make(map[string]string)
	search := strings.ToLower(strings.TrimSpace(query.Search))
	rows := make([]MemberListRow, 0, len(accounts))

	for _, a := range accounts {
		if search != "" && !strings.Contains(strings.ToLower(a.DisplayName), search) && !strings.Contains(strings.ToLower(a.Email), search) {
			continue
		}
		row := MemberListRow{UserID: a.ID, DisplayName: a.DisplayName, Email: a.Email}
		if !a.LastActiveAt.IsZero() {
			last := a.LastActiveAt
			row.LastActiveAt = &last
		}

		memberships, err := deps.MembershipStore.ListByUser(ctx, a.ID)
		if err != nil {
			return GetMemberListResult{}, err
		}
		for _, m := range memberships {
			if !m.IsActive() {
				continue
			}
			row.Credits += m.Data.RemainingCredits
			if row.PlanID != "" {
				continue
			}
			row.PlanID = m.PlanID
			name, ok := plans[m.PlanID]
			if !ok {
				p, err := deps.PlanStore.GetByID(ctx, m.PlanID)
				if err != nil {
					return GetMemberListResult{}, fmt.Errorf("load plan %s: %w", m.PlanID, err)
				}
				name = p.Name
				plans[m.PlanID] = name
			}
			row.PlanName = name
		}

		if want := query.Filters["plan"]; want != "" && row.PlanID != want {
			continue
		}
		switch query.Filters["status"] {
		case "active":
			if row.PlanID == "" {
				continue
			}
		case "none":
			if row.PlanID != "" {
				continue
			}
		}
		rows = append(rows, row)
	}

	sortMemberRows(rows, query.Sort, query.Desc)

	members, page := listutil.Paginate(rows, query.Query)
	return GetMemberListResult{Members: members, Page: page}, nil
}

// sortMemberRows orders rows by column, name breaking ties. Never-active
// members sort before any timestamp.
func sortMemberRows(rows []MemberListRow, column string, desc bool) {
	slices.SortStableFunc(rows, func(a, b MemberListRow) int {
		var c int
		switch column {
		case "email":
			c = cmp.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email))
		case "lastActive":
			c = cmp.Compare(unixOrZero(a.LastActiveAt), unixOrZero(b.LastActiveAt))
		case "credits":
			c = cmp.Compare(a.Credits, b.Credits)
		}
		if c == 0 {
			c = cmp.Or(cmp.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)), cmp.Compare(a.UserID, b.UserID))
		}
		if desc {
			return -c
		}
		return c
	})
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixNano()
}
