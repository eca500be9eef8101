package models

import "errors"

type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusQueued     TicketStatus = "QUEUED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusParked     TicketStatus = "PARKED"
	TicketStatusPaid       TicketStatus = "PAID"
	TicketStatusCompleted  TicketStatus = "COMPLETED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
)

// terminal tickets are immutable except for soft deletion
func (t TicketStatus) IsTerminal() bool {
	return t == TicketStatusCompleted || t == TicketStatusCancelled
}

func ParseTicketStatus(s string) (TicketStatus, error) {
	switch TicketStatus(s) {
	case TicketStatusPending, TicketStatusQueued, TicketStatusInProgress,
		TicketStatusParked, TicketStatusPaid, TicketStatusCompleted, TicketStatusCancelled:
		return TicketStatus(s), nil
	default:
		return "", errors.New("invalid ticket status")
	}
}

type ItemKind string

const (
	ItemKindService ItemKind = "service"
	ItemKindProduct ItemKind = "product"
)

type ChangeOp string

const (
	// ChangeOpPut is an upsert by identifier: insert if absent, overwrite if present.
	ChangeOpPut ChangeOp = "PUT"
	// ChangeOpPatch is a partial update of named fields, matched by identifier.
	ChangeOpPatch ChangeOp = "PATCH"
	// ChangeOpDelete removes the row by identifier.
	ChangeOpDelete ChangeOp = "DELETE"
)

func ParseChangeOp(s string) (ChangeOp, error) {
	switch ChangeOp(s) {
	case ChangeOpPut, ChangeOpPatch, ChangeOpDelete:
		return ChangeOp(s), nil
	default:
		return "", errors.New("invalid change op")
	}
}
