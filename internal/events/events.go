package events

import (
	"context"

	flatdomain "github.com/smallbiznis/societyops/internal/flat/domain"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
	"gorm.io/gorm"
)

type Type string

const (
	TypeAssignmentCreated    Type = "assignment.created"
	TypeAssignmentRemoved    Type = "assignment.removed"
	TypePaymentCreated       Type = "payment.created"
	TypePaymentStatusChanged Type = "payment.status_changed"
	TypePaymentVerified      Type = "payment.verified"
)

const (
	AggregateFlat    = "flat"
	AggregatePayment = "maintenance_payment"
)

// Event is a closed set of domain events. Each variant carries the full
// record as it was after the change.
type Event interface {
	EventType() Type
	AggregateType() string
	AggregateID() string
	isEvent()
}

// Bus publishes events as part of the caller's transaction.
type Bus interface {
	Publish(ctx context.Context, tx *gorm.DB, event Event) error
}

type AssignmentCreated struct {
	Assignment flatdomain.Assignment `json:"assignment"`
	Flat       flatdomain.Flat       `json:"flat"`
}

func (AssignmentCreated) EventType() Type       { return TypeAssignmentCreated }
func (AssignmentCreated) AggregateType() string { return AggregateFlat }
func (e AssignmentCreated) AggregateID() string { return e.Flat.ID.String() }
func (AssignmentCreated) isEvent()              {}

type AssignmentRemoved struct {
	Assignment flatdomain.Assignment `json:"assignment"`
	Flat       flatdomain.Flat       `json:"flat"`
}

func (AssignmentRemoved) EventType() Type       { return TypeAssignmentRemoved }
func (AssignmentRemoved) AggregateType() string { return AggregateFlat }
func (e AssignmentRemoved) AggregateID() string { return e.Flat.ID.String() }
func (AssignmentRemoved) isEvent()              {}

type PaymentCreated struct {
	Payment maintenancedomain.Payment `json:"payment"`
}

func (PaymentCreated) EventType() Type       { return TypePaymentCreated }
func (PaymentCreated) AggregateType() string { return AggregatePayment }
func (e PaymentCreated) AggregateID() string { return e.Payment.ID.String() }
func (PaymentCreated) isEvent()              {}

type PaymentStatusChanged struct {
	Payment maintenancedomain.Payment       `json:"payment"`
	From    maintenancedomain.PaymentStatus `json:"from"`
	To      maintenancedomain.PaymentStatus `json:"to"`
}

func (PaymentStatusChanged) EventType() Type       { return TypePaymentStatusChanged }
func (PaymentStatusChanged) AggregateType() string { return AggregatePayment }
func (e PaymentStatusChanged) AggregateID() string { return e.Payment.ID.String() }
func (PaymentStatusChanged) isEvent()              {}

type PaymentVerified struct {
	Payment maintenancedomain.Payment `json:"payment"`
}

func (PaymentVerified) EventType() Type       { return TypePaymentVerified }
func (PaymentVerified) AggregateType() string { return AggregatePayment }
func (e PaymentVerified) AggregateID() string { return e.Payment.ID.String() }
func (PaymentVerified) isEvent()              {}
