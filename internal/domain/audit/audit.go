package audit

import (
	"errors"
	"time"
)

// Category groups audit events by the area of the gym they touch.
type Category string

const (
	CategoryAccount    Category = "account"
	CategoryCatalog    Category = "catalog"
	CategoryMembership Category = "membership"
	CategoryBooking    Category = "booking"
	CategoryOutbox     Category = "outbox"
	CategorySecurity   Category = "security"
)

// Action is what the actor did.
type Action string

const (
	ActionCreate         Action = "create"
	ActionUpdate         Action = "update"
	ActionLogin          Action = "login"
	ActionBookOnBehalf   Action = "book_on_behalf"
	ActionCancelOnBehalf Action = "cancel_on_behalf"
	ActionRetry          Action = "retry"
	ActionAbandon        Action = "abandon"
	ActionPromote        Action = "promote"
	ActionPurge          Action = "purge"
)

// Domain errors
var (
	ErrEmptyID       = errors.New("audit event ID cannot be empty")
	ErrEmptyActor    = errors.New("audit event needs an actor")
	ErrEmptyCategory = errors.New("audit event needs a category")
	ErrEmptyAction   = errors.New("audit event needs an action")
	ErrZeroTime      = errors.New("audit event needs a timestamp")
)

// Event is one entry in the admin audit trail. Events are append-only.
type Event struct {
	ID           string    `json:"id"`
	OccurredAt   time.Time `json:"occurredAt"`
	Category     Category  `json:"category"`
	Action       Action    `json:"action"`
	ActorID      string    `json:"actorId"`
	ActorRole    string    `json:"actorRole"`
	SubjectID    string    `json:"subjectId,omitempty"` // user acted upon, when not the actor
	ResourceType string    `json:"resourceType,omitempty"`
	ResourceID   string    `json:"resourceId,omitempty"`
	Description  string    `json:"description,omitempty"`
	IPAddress    string    `json:"ipAddress,omitempty"`
}

// NewEvent starts an event for actorID at the given instant.
// PRE: id, actorID, category and action are non-empty
// POST: Returns an Event with only the identifying fields set
func NewEvent(id string, at time.Time, actorID, actorRole string, category Category, action Action) Event {
	return Event{
		ID:         id,
		OccurredAt: at,
		Category:   category,
		Action:     action,
		ActorID:    actorID,
		ActorRole:  actorRole,
	}
}

// WithResource names the record the action touched.
func (e Event) WithResource(resourceType, resourceID string) Event {
	e.ResourceType = resourceType
	e.ResourceID = resourceID
	return e
}

// WithSubject names the user the action was taken for.
func (e Event) WithSubject(userID string) Event {
	e.SubjectID = userID
	return e
}

func (e Event) WithDescription(desc string) Event {
	e.Description = desc
	return e
}

func (e Event) WithIP(ip string) Event {
	e.IPAddress = ip
	return e
}

// OnBehalf reports whether the actor acted for somebody else.
func (e Event) OnBehalf() bool {
	return e.SubjectID != "" && e.SubjectID != e.ActorID
}

// Validate checks if the Event has valid data.
// PRE: Event struct is populated
// POST: Returns nil if valid, error otherwise
func (e *Event) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.ActorID == "" {
		return ErrEmptyActor
	}
	if e.Category == "" {
		return ErrEmptyCategory
	}
	if e.Action == "" {
		return ErrEmptyAction
	}
	if e.OccurredAt.IsZero() {
		return ErrZeroTime
	}
	return nil
}
