package projections

import (
	"context"
	"time"

	accountStore "gymdesk/internal/adapters/storage/account"
	"gymdesk/internal/domain/account"
)

// GetInactiveMembersQuery carries input for the inactive radar projection.
type GetInactiveMembersQuery struct {
	DaysSinceLastActive int // members inactive for at least this many days
	Now                 time.Time
}

// GetInactiveMembersDeps holds dependencies for the inactive radar.
type GetInactiveMembersDeps struct {
	AccountStore    AccountStore
	MembershipStore MembershipStore
}

// InactiveMemberResult represents a single inactive member.
type InactiveMemberResult struct {
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	LastActive   string `json:"lastActive"` // YYYY-MM-DD or "never"
	DaysInactive int    `json:"daysInactive"`
}

// QueryGetInactiveMembers returns paying members who haven't booked for the specified number of days.
// Members without an active membership are not churn risks and are left out.
func QueryGetInactiveMembers(ctx context.Context, query GetInactiveMembersQuery, deps GetInactiveMembersDeps) ([]InactiveMemberResult, error) {
	if query.DaysSinceLastActive <= 0 {
		query.DaysSinceLastActive = 30
	}
	now := query.Now
	if now.IsZero() {
		now = time.Now()
	}
	cutoff := now.AddDate(0, 0, -query.DaysSinceLastActive)

	accounts, err := deps.AccountStore.List(ctx, accountStore.ListFilter{
		Limit:          10000,
		Role:           account.RoleMember,
		InactiveBefore: cutoff,
	})
	if err != nil {
		return nil, err
	}

	var results []InactiveMemberResult

	for _, a := range accounts {
		memberships, err := deps.MembershipStore.ListByUser(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		active := false
		for _, m := range memberships {
			if m.IsActive() {
				active = true
				break
			}
		}
		if !active {
			continue
		}

		if a.LastActiveAt.IsZero() {
			results = append(results, InactiveMemberResult{
				UserID:       a.ID,
				DisplayName:  a.DisplayName,
				Email:        a.Email,
				LastActive:   "never",
				DaysInactive: -1,
			})
			continue
		}

		results = append(results, InactiveMemberResult{
			UserID:       a.ID,
			DisplayName:  a.DisplayName,
			Email:        a.Email,
			LastActive:   a.LastActiveAt.Format("2006-01-02"),
			DaysInactive: int(now.Sub(a.LastActiveAt).Hours() / 24),
		})
	}

	return results, nil
}
