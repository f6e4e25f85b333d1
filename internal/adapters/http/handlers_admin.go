package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	accountStore "gymdesk/internal/adapters/storage/account"
	courseStore "gymdesk/internal/adapters/storage/course"
	planStore "gymdesk/internal/adapters/storage/plan"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/account"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/plan"
)

type accountRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

type accountResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// handleAdminAccounts handles GET/POST /api/admin/accounts
func handleAdminAccounts(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := stores.AccountStore.List(r.Context(), accountStore.ListFilter{Role: r.URL.Query().Get("role")})
		if err != nil {
			internalError(w, err)
			return
		}
		out := make([]accountResponse, 0, len(list))
		for _, a := range list {
			out = append(out, accountResponse{ID: a.ID, Email: a.Email, DisplayName: a.DisplayName, Role: a.Role, LastActiveAt: a.LastActiveAt})
		}
		writeJSON(w, http.StatusOK, out)

	case http.MethodPost:
		var req accountRequest
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		id, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Password:    req.Password,
			Role:        req.Role,
		}, orchestrators.AccountDeps{AccountStore: stores.AccountStore, Now: timeNow})
		switch {
		case errors.Is(err, orchestrators.ErrEmailAlreadyExists):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			writeAdminError(w, err)
			return
		}
		recordAudit(r.Context(), auditEvent(r, sess, audit.CategoryAccount, audit.ActionCreate).
			WithResource("account", id).WithDescription("role "+roleOrDefault(req.Role)))
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// writeAction distinguishes create from update for upsert endpoints.
func writeAction(id string) audit.Action {
	if id == "" {
		return audit.ActionCreate
	}
	return audit.ActionUpdate
}

func roleOrDefault(role string) string {
	if role == "" {
		return account.RoleMember
	}
	return role
}

type planRequest struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Rule            plan.BookingRule `json:"rule"`
	IncludesOpenGym bool             `json:"includesOpenGym"`
	IsActive        bool             `json:"isActive"`
	PriorityRank    int              `json:"priorityRank"`
}

// handleAdminPlans handles GET/POST /api/admin/plans
// POST with an empty id creates a plan; otherwise it updates one.
func handleAdminPlans(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := stores.PlanStore.List(r.Context(), planStore.ListFilter{ActiveOnly: queryBool(r, "activeOnly")})
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case http.MethodPost:
		var req planRequest
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		p, err := orchestrators.ExecuteSavePlan(r.Context(), orchestrators.SavePlanInput{
			ID:              req.ID,
			Name:            req.Name,
			Rule:            req.Rule,
			IncludesOpenGym: req.IncludesOpenGym,
			IsActive:        req.IsActive,
			PriorityRank:    req.PriorityRank,
		}, orchestrators.SavePlanDeps{PlanStore: stores.PlanStore, Now: timeNow})
		if err != nil {
			writeAdminError(w, err)
			return
		}
		recordAudit(r.Context(), auditEvent(r, sess, audit.CategoryCatalog, writeAction(req.ID)).
			WithResource("plan", p.ID).WithDescription(p.Name))
		writeJSON(w, http.StatusOK, p)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type courseRequest struct {
	ID                          string `json:"id"`
	Title                       string `json:"title"`
	CourseDate                  string `json:"courseDate"`
	StartTime                   string `json:"startTime"`
	EndTime                     string `json:"endTime"`
	MaxParticipants             int    `json:"maxParticipants"`
	RegistrationDeadlineMinutes int    `json:"registrationDeadlineMinutes"`
	CancellationDeadlineMinutes int    `json:"cancellationDeadlineMinutes"`
	IsCancelled                 bool   `json:"isCancelled"`
}

// handleAdminCourses handles GET/POST /api/admin/courses
// Staff may list; only admins may write.
func handleAdminCourses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := requireStaff(w, r); !ok {
			return
		}
		q := r.URL.Query()
		list, err := stores.CourseStore.List(r.Context(), courseStore.ListFilter{
			FromDate:         q.Get("from"),
			ToDate:           q.Get("to"),
			IncludeCancelled: true,
		})
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case http.MethodPost:
		sess, ok := requireAdmin(w, r)
		if !ok {
			return
		}
		var req courseRequest
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		c, err := orchestrators.ExecuteSaveCourse(r.Context(), orchestrators.SaveCourseInput{
			ID:                          req.ID,
			Title:                       req.Title,
			CourseDate:                  req.CourseDate,
			StartTime:                   req.StartTime,
			EndTime:                     req.EndTime,
			MaxParticipants:             req.MaxParticipants,
			RegistrationDeadlineMinutes: req.RegistrationDeadlineMinutes,
			CancellationDeadlineMinutes: req.CancellationDeadlineMinutes,
			IsCancelled:                 req.IsCancelled,
		}, orchestrators.SaveCourseDeps{CourseStore: stores.CourseStore, Promoter: promoter()})
		if err != nil {
			writeAdminError(w, err)
			return
		}
		recordAudit(r.Context(), auditEvent(r, sess, audit.CategoryCatalog, writeAction(req.ID)).
			WithResource("course", c.ID).WithDescription(c.Title))
		writeJSON(w, http.StatusOK, c)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type membershipRequest struct {
	UserID      string `json:"userId"`
	PlanID      string `json:"planId"`
	StartDate   string `json:"startDate,omitempty"` // YYYY-MM-DD, default today
	EndDate     string `json:"endDate,omitempty"`   // YYYY-MM-DD, empty for open-ended
	AutoRenewal bool   `json:"autoRenewal"`
}

type membershipStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// parseDay parses an optional YYYY-MM-DD in the gym's timezone.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation("2006-01-02", s, location())
}

// handleAdminMemberships handles GET /api/admin/memberships?userId= and POST (assign)
func handleAdminMemberships(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		userID := r.URL.Query().Get("userId")
		if userID == "" {
			http.Error(w, "userId is required", http.StatusBadRequest)
			return
		}
		list, err := stores.MembershipStore.ListByUser(r.Context(), userID)
		if err != nil {
			internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case http.MethodPost:
		var req membershipRequest
		if err := strictDecode(r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		start, err := parseDay(req.StartDate)
		if err != nil {
			http.Error(w, "startDate must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		end, err := parseDay(req.EndDate)
		if err != nil {
			http.Error(w, "endDate must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		m, err := orchestrators.ExecuteAssignMembership(r.Context(), orchestrators.AssignMembershipInput{
			UserID:      req.UserID,
			PlanID:      req.PlanID,
			StartDate:   start,
			EndDate:     end,
			AutoRenewal: req.AutoRenewal,
		}, orchestrators.AssignMembershipDeps{
			AccountStore:    stores.AccountStore,
			PlanStore:       stores.PlanStore,
			MembershipStore: stores.MembershipStore,
			LedgerStore:     stores.LedgerStore,
			UnitOfWork:      stores.UnitOfWork,
			Now:             timeNow,
		})
		if err != nil {
			writeAdminError(w, err)
			return
		}
		recordAudit(r.Context(), auditEvent(r, sess, audit.CategoryMembership, audit.ActionCreate).
			WithResource("membership", m.ID).WithSubject(m.UserID).WithDescription("plan "+m.PlanID))
		writeJSON(w, http.StatusCreated, m)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAdminMembershipStatus handles POST /api/admin/memberships/status
func handleAdminMembershipStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireAdmin(w, r)
	if !ok || !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req membershipStatusRequest
	if err := strictDecode(r, &req); err != nil || req.ID == "" {
		http.Error(w, "id and status are required", http.StatusBadRequest)
		return
	}
	m, err := orchestrators.ExecuteSetMembershipStatus(r.Context(), req.ID, req.Status, stores.MembershipStore)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	recordAudit(r.Context(), auditEvent(r, sess, audit.CategoryMembership, audit.ActionUpdate).
		WithResource("membership", m.ID).WithSubject(m.UserID).WithDescription("status "+m.Status))
	writeJSON(w, http.StatusOK, m)
}

// handleAdminRoster handles GET /api/admin/courses/roster?courseId=
func handleAdminRoster(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	courseID := r.URL.Query().Get("courseId")
	if courseID == "" {
		http.Error(w, "courseId is required", http.StatusBadRequest)
		return
	}
	roster, err := projections.QueryGetCourseRoster(r.Context(), projections.GetCourseRosterQuery{CourseID: courseID}, projections.GetCourseRosterDeps{
		CourseStore:       stores.CourseStore,
		RegistrationStore: stores.RegistrationStore,
		AccountStore:      stores.AccountStore,
	})
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// handleAdminPromote handles POST /api/admin/courses/promote, running waitlist promotion now.
func handleAdminPromote(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireStaff(w, r)
	if !ok || !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req bookingRequest
	if err := strictDecode(r, &req); err != nil || req.CourseID == "" {
		http.Error(w, "courseId is required", http.StatusBadRequest)
		return
	}
	res, err := orchestrators.ExecutePromoteWaitlist(r.Context(), orchestrators.PromoteWaitlistInput{CourseID: req.CourseID}, BookingDeps())
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	recordAudit(r.Context(), auditEvent(r, sess, audit.CategoryBooking, audit.ActionPromote).
		WithResource("course", req.CourseID))
	writeJSON(w, http.StatusOK, res)
}

// handleAdminMembers handles GET /api/admin/members?q=&plan=&status=&sort=&dir=&page=&per_page=
func handleAdminMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	query := projections.GetMemberListQuery{Query: projections.MemberDirectory.Parse(r.URL.Query())}
	res, err := projections.QueryGetMemberList(r.Context(), query, projections.GetMemberListDeps{
		AccountStore:    stores.AccountStore,
		MembershipStore: stores.MembershipStore,
		PlanStore:       stores.PlanStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleGetInactiveMembers handles GET /api/admin/inactive?days=
func handleGetInactiveMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireStaff(w, r); !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	results, err := projections.QueryGetInactiveMembers(r.Context(), projections.GetInactiveMembersQuery{
		DaysSinceLastActive: days,
		Now:                 timeNow(),
	}, projections.GetInactiveMembersDeps{
		AccountStore:    stores.AccountStore,
		MembershipStore: stores.MembershipStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleAdminPerf handles GET /api/admin/perf?minutes=
func handleAdminPerf(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	if perfCollector == nil {
		http.Error(w, "performance collection is disabled", http.StatusNotFound)
		return
	}
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		minutes = 60
	}
	writeJSON(w, http.StatusOK, perfCollector.Snapshot(timeNow().Add(-time.Duration(minutes)*time.Minute), 10))
}
