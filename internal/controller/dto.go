package controller

import (
	"time"

	"github.com/cassiomorais/tripcheckout/internal/application/checkout"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
)

// --- Request DTOs ---
// Validator tags reject malformed JSON early; trip.Draft.Validate still owns
// the date rules because they depend on the current time.

// CheckoutRequest is the trip form submitted before paying.
type CheckoutRequest struct {
	Title       string     `json:"title" validate:"required,max=120"`
	GroupLabel  string     `json:"group_label" validate:"max=60"`
	Description string     `json:"description" validate:"max=2000"`
	StartAt     time.Time  `json:"start_at" validate:"required"`
	EndAt       *time.Time `json:"end_at,omitempty"`
}

// Draft converts the request to a domain draft.
func (r CheckoutRequest) Draft() trip.Draft {
	return trip.Draft{
		Title:       r.Title,
		GroupLabel:  r.GroupLabel,
		Description: r.Description,
		StartAt:     r.StartAt,
		EndAt:       r.EndAt,
	}
}

// --- Response DTOs ---

// CheckoutResponse tells the client where to send the user to pay.
type CheckoutResponse struct {
	IntentID     string `json:"intent_id"`
	TokenShape   string `json:"token_shape"`
	RedirectURL  string `json:"redirect_url"`
	TiersWritten int    `json:"tiers_written"`
	State        string `json:"state"`
}

// DraftResponse is a draft as shown in the form.
type DraftResponse struct {
	Title       string     `json:"title"`
	GroupLabel  string     `json:"group_label,omitempty"`
	Description string     `json:"description,omitempty"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       *time.Time `json:"end_at,omitempty"`
}

// PendingResponse is the intent waiting on payment for the caller.
type PendingResponse struct {
	IntentID  string        `json:"intent_id"`
	Tier      string        `json:"tier"`
	Draft     DraftResponse `json:"draft"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// TripResponse is a trip as seen by its owner.
type TripResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	GroupLabel  string     `json:"group_label,omitempty"`
	Description string     `json:"description,omitempty"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	JoinCode    string     `json:"join_code"`
	OwnerID     string     `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TripPreviewResponse is what a join code reveals to anyone holding it.
type TripPreviewResponse struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	GroupLabel string     `json:"group_label,omitempty"`
	StartAt    time.Time  `json:"start_at"`
	EndAt      *time.Time `json:"end_at,omitempty"`
}

type TransitionResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// ReturnResponse is where the return page landed.
type ReturnResponse struct {
	State             string               `json:"state"`
	Kind              string               `json:"kind"`
	Shape             string               `json:"shape,omitempty"`
	Reason            string               `json:"reason,omitempty"`
	Trip              *TripResponse        `json:"trip,omitempty"`
	Draft             *DraftResponse       `json:"draft,omitempty"`
	Message           string               `json:"message,omitempty"`
	MembershipWarning string               `json:"membership_warning,omitempty"`
	Replayed          bool                 `json:"replayed"`
	Pending           bool                 `json:"pending"`
	CleanURL          string               `json:"clean_url"`
	Transitions       []TransitionResponse `json:"transitions,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// --- Conversion helpers ---

func FromDraft(d trip.Draft) DraftResponse {
	return DraftResponse{
		Title:       d.Title,
		GroupLabel:  d.GroupLabel,
		Description: d.Description,
		StartAt:     d.StartAt,
		EndAt:       d.EndAt,
	}
}

func FromTrip(t *trip.Trip) *TripResponse {
	return &TripResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		GroupLabel:  t.GroupLabel,
		Description: t.Description,
		StartAt:     t.StartAt,
		EndAt:       t.EndAt,
		JoinCode:    t.JoinCode,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
	}
}

func FromTripPreview(t *trip.Trip) *TripPreviewResponse {
	return &TripPreviewResponse{
		ID:         t.ID.String(),
		Title:      t.Title,
		GroupLabel: t.GroupLabel,
		StartAt:    t.StartAt,
		EndAt:      t.EndAt,
	}
}

func FromPending(in *intent.Intent) *PendingResponse {
	return &PendingResponse{
		IntentID:  in.ID.String(),
		Tier:      string(in.Tier),
		Draft:     FromDraft(in.Draft),
		ExpiresAt: in.ExpiresAt,
	}
}

func FromStart(res *checkout.StartResult) *CheckoutResponse {
	return &CheckoutResponse{
		IntentID:     res.Intent.ID.String(),
		TokenShape:   string(res.Token.Shape),
		RedirectURL:  res.RedirectURL,
		TiersWritten: res.TiersWritten,
		State:        string(res.State),
	}
}

func FromOutcome(o checkout.Outcome, cleanURL string) *ReturnResponse {
	resp := &ReturnResponse{
		State:             string(o.State),
		Kind:              string(o.Kind),
		Shape:             string(o.Shape),
		Reason:            o.Reason,
		Message:           o.Message,
		MembershipWarning: o.Warning,
		Replayed:          o.Replayed,
		Pending:           o.Pending,
		CleanURL:          cleanURL,
	}
	if o.Trip != nil {
		resp.Trip = FromTrip(o.Trip)
	}
	if o.Draft != nil {
		d := FromDraft(*o.Draft)
		resp.Draft = &d
	}
	for _, tr := range o.Transitions {
		resp.Transitions = append(resp.Transitions, TransitionResponse{
			From:   string(tr.From),
			To:     string(tr.To),
			Reason: tr.Reason,
		})
	}
	return resp
}
