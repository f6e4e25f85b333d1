package web

import "net/http"

// registerRoutes wires every API endpoint onto mux.
func registerRoutes(mux *http.ServeMux) {
	// Auth
	mux.HandleFunc("/api/login", handleLogin)
	mux.HandleFunc("/api/logout", handleLogout)
	mux.HandleFunc("/api/me", handleMe)
	mux.HandleFunc("/api/me/password", handleChangePassword)

	// Member booking
	mux.HandleFunc("/api/courses", handleCourses)
	mux.HandleFunc("/api/courses/eligibility", handleEligibility)
	mux.HandleFunc("/api/registrations", handleRegister)
	mux.HandleFunc("/api/registrations/cancel", handleCancel)
	mux.HandleFunc("/api/me/registrations", handleMyRegistrations)
	mux.HandleFunc("/api/me/credits", handleMyCredits)
	mux.HandleFunc("/api/events", handleEvents)

	// Admin
	mux.HandleFunc("/api/admin/accounts", handleAdminAccounts)
	mux.HandleFunc("/api/admin/plans", handleAdminPlans)
	mux.HandleFunc("/api/admin/courses", handleAdminCourses)
	mux.HandleFunc("/api/admin/courses/roster", handleAdminRoster)
	mux.HandleFunc("/api/admin/courses/promote", handleAdminPromote)
	mux.HandleFunc("/api/admin/memberships", handleAdminMemberships)
	mux.HandleFunc("/api/admin/memberships/status", handleAdminMembershipStatus)
	mux.HandleFunc("/api/admin/members", handleAdminMembers)
	mux.HandleFunc("/api/admin/inactive", handleGetInactiveMembers)
	mux.HandleFunc("/api/admin/outbox", handleAdminOutbox)
	mux.HandleFunc("/api/admin/outbox/", handleAdminOutbox)
	mux.HandleFunc("/api/admin/perf", handleAdminPerf)
	mux.HandleFunc("/api/admin/audit", handleAdminAudit)
}
