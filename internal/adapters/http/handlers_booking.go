package web

import (
	"net/http"
	"strconv"

	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/audit"
	"gymdesk/internal/domain/registration"
)

// bookingRequest is the body of register and cancel calls.
// Staff may act for another user through UserID.
type bookingRequest struct {
	CourseID string `json:"courseId"`
	UserID   string `json:"userId,omitempty"`
}

type registerResponse struct {
	Registration registration.Registration `json:"registration"`
	Outcome      string                    `json:"outcome"`
	Charged      bool                      `json:"charged"`
}

type cancelResponse struct {
	Registration registration.Registration `json:"registration"`
	PriorStatus  string                    `json:"priorStatus"`
	Refunded     bool                      `json:"refunded"`
}

// actingUser resolves whose booking a request touches.
// Members always act for themselves.
func actingUser(w http.ResponseWriter, sess middleware.Session, requested string) (string, bool) {
	if requested == "" || requested == sess.AccountID {
		return sess.AccountID, true
	}
	if !sess.IsStaff() {
		http.Error(w, "cannot book for another user", http.StatusForbidden)
		return "", false
	}
	return requested, true
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// handleCourses handles GET /api/courses?from=&to=&includeCancelled=
// from defaults to today in the gym's timezone.
func handleCourses(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	from := q.Get("from")
	if from == "" {
		from = timeNow().In(location()).Format("2006-01-02")
	}

	slots, err := projections.QueryGetCourseSchedule(r.Context(), projections.GetCourseScheduleQuery{
		FromDate:         from,
		ToDate:           q.Get("to"),
		UserID:           sess.AccountID,
		IncludeCancelled: queryBool(r, "includeCancelled"),
	}, projections.GetCourseScheduleDeps{
		CourseStore:       stores.CourseStore,
		RegistrationStore: stores.RegistrationStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// handleEligibility handles GET /api/courses/eligibility?courseId=
// A refusal is a normal answer here, not an error.
func handleEligibility(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	courseID := r.URL.Query().Get("courseId")
	if courseID == "" {
		http.Error(w, "courseId is required", http.StatusBadRequest)
		return
	}
	userID, ok := actingUser(w, sess, r.URL.Query().Get("userId"))
	if !ok {
		return
	}

	elig, err := orchestrators.ExecuteCheckEligibility(r.Context(), orchestrators.CheckEligibilityInput{
		UserID:   userID,
		CourseID: courseID,
	}, BookingDeps())
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, elig)
}

// handleRegister handles POST /api/registrations
func handleRegister(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok || !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req bookingRequest
	if err := strictDecode(r, &req); err != nil || req.CourseID == "" {
		http.Error(w, "courseId is required", http.StatusBadRequest)
		return
	}
	userID, ok := actingUser(w, sess, req.UserID)
	if !ok {
		return
	}

	res, err := orchestrators.ExecuteRegisterForCourse(r.Context(), orchestrators.RegisterForCourseInput{
		UserID:   userID,
		CourseID: req.CourseID,
	}, BookingDeps())
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	if userID != sess.AccountID {
		recordAudit(r.Context(), auditEvent(r, sess, audit.CategoryBooking, audit.ActionBookOnBehalf).
			WithResource("course", req.CourseID).WithSubject(userID).WithDescription(res.Outcome))
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		Registration: res.Registration,
		Outcome:      res.Outcome,
		Charged:      res.Charged,
	})
}

// handleCancel handles POST /api/registrations/cancel
func handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok || !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req bookingRequest
	if err := strictDecode(r, &req); err != nil || req.CourseID == "" {
		http.Error(w, "courseId is required", http.StatusBadRequest)
		return
	}
	userID, ok := actingUser(w, sess, req.UserID)
	if !ok {
		return
	}

	res, err := orchestrators.ExecuteCancelRegistration(r.Context(), orchestrators.CancelRegistrationInput{
		UserID:   userID,
		CourseID: req.CourseID,
	}, BookingDeps())
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	if userID != sess.AccountID {
		recordAudit(r.Context(), auditEvent(r, sess, audit.CategoryBooking, audit.ActionCancelOnBehalf).
			WithResource("course", req.CourseID).WithSubject(userID))
	}
	writeJSON(w, http.StatusOK, cancelResponse{
		Registration: res.Registration,
		PriorStatus:  res.PriorStatus,
		Refunded:     res.Refunded,
	})
}

// handleMyRegistrations handles GET /api/me/registrations?includeCancelled=&includePast=
func handleMyRegistrations(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	list, err := projections.QueryGetMyRegistrations(r.Context(), projections.GetMyRegistrationsQuery{
		UserID:           sess.AccountID,
		IncludeCancelled: queryBool(r, "includeCancelled"),
		IncludePast:      queryBool(r, "includePast"),
		Now:              timeNow(),
		Location:         location(),
	}, projections.GetMyRegistrationsDeps{
		RegistrationStore: stores.RegistrationStore,
		CourseStore:       stores.CourseStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleMyCredits handles GET /api/me/credits?limit=
func handleMyCredits(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok || !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit > 200 {
		limit = 200
	}
	history, err := projections.QueryGetCreditHistory(r.Context(), projections.GetCreditHistoryQuery{
		UserID: sess.AccountID,
		Limit:  limit,
	}, projections.GetCreditHistoryDeps{
		MembershipStore: stores.MembershipStore,
		LedgerStore:     stores.LedgerStore,
	})
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}
