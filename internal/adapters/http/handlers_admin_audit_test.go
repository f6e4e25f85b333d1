package web

import (
	"context"
	"net/http"
	"testing"

	auditStore "gymdesk/internal/adapters/storage/audit"
	"gymdesk/internal/domain/audit"
)

// TestAudit_RecordsStaffActions tests that admin writes and bookings made
// for another member land in the trail, and a member's own booking does not.
func TestAudit_RecordsStaffActions(t *testing.T) {
	g := newTestGym(t)
	ctx := context.Background()

	if rec := serve(handleRegister, authRequest("POST", "/api/registrations", `{"courseId":"c2"}`, memberSession)); rec.Code != http.StatusCreated {
		t.Fatalf("member register: %d %s", rec.Code, rec.Body)
	}
	if rec := serve(handleRegister, authRequest("POST", "/api/registrations", `{"courseId":"c2","userId":"u2"}`, trainerSession)); rec.Code != http.StatusCreated {
		t.Fatalf("trainer register: %d %s", rec.Code, rec.Body)
	}
	if rec := serve(handleCancel, authRequest("POST", "/api/registrations/cancel", `{"courseId":"c2","userId":"u2"}`, trainerSession)); rec.Code != http.StatusOK {
		t.Fatalf("trainer cancel: %d %s", rec.Code, rec.Body)
	}
	body := `{"name":"Ten a month","rule":{"kind":"limited","count":10,"period":"month"},"isActive":true}`
	if rec := serve(handleAdminPlans, authRequest("POST", "/api/admin/plans", body, adminSession)); rec.Code != http.StatusOK {
		t.Fatalf("create plan: %d %s", rec.Code, rec.Body)
	}

	booking, err := g.audit.List(ctx, auditStore.Filter{Category: audit.CategoryBooking}, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(booking) != 2 {
		t.Fatalf("booking events = %+v, want book and cancel on behalf", booking)
	}
	for _, e := range booking {
		if e.ActorID != trainerSession.AccountID || e.SubjectID != "u2" || e.ResourceID != "c2" || !e.OnBehalf() {
			t.Errorf("event = %+v", e)
		}
		if e.IPAddress != "192.0.2.1" {
			t.Errorf("IPAddress = %q", e.IPAddress)
		}
	}

	catalog, _ := g.audit.List(ctx, auditStore.Filter{Category: audit.CategoryCatalog}, 10)
	if len(catalog) != 1 || catalog[0].Action != audit.ActionCreate || catalog[0].ResourceType != "plan" || catalog[0].Description != "Ten a month" {
		t.Errorf("catalog events = %+v", catalog)
	}
}

// TestHandleAdminAudit tests listing, filtering and access to the trail.
func TestHandleAdminAudit(t *testing.T) {
	newTestGym(t)
	serve(handleRegister, authRequest("POST", "/api/registrations", `{"courseId":"c2","userId":"u2"}`, trainerSession))
	serve(handleAdminPromote, authRequest("POST", "/api/admin/courses/promote", `{"courseId":"c1"}`, trainerSession))

	rec := serve(handleAdminAudit, authRequest("GET", "/api/admin/audit?actorId=coach-1", "", adminSession))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body)
	}
	var list []audit.Event
	decode(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("events = %+v", list)
	}

	rec = serve(handleAdminAudit, authRequest("GET", "/api/admin/audit?action=promote&to=2026-03-02", "", adminSession))
	list = nil
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ResourceID != "c1" {
		t.Errorf("promote events = %+v", list)
	}

	rec = serve(handleAdminAudit, authRequest("GET", "/api/admin/audit?from=2026-03-03", "", adminSession))
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("future window = %d %q", rec.Code, rec.Body.String())
	}

	if rec := serve(handleAdminAudit, authRequest("GET", "/api/admin/audit?from=March", "", adminSession)); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d", rec.Code)
	}
	if rec := serve(handleAdminAudit, authRequest("GET", "/api/admin/audit", "", trainerSession)); rec.Code != http.StatusForbidden {
		t.Errorf("trainer status = %d", rec.Code)
	}

	stores.AuditStore = nil
	if rec := serve(handleAdminAudit, authRequest("GET", "/api/admin/audit", "", adminSession)); rec.Code != http.StatusNotFound {
		t.Errorf("disabled status = %d", rec.Code)
	}
}
