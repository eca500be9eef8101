// Package cart holds the in-memory state of the order being rung up and the
// projection between that state and the rows the local store persists.
package cart

import (
	"sync"

	"github.com/sevene/garayi-carwash-v2-sub001/models"
	"github.com/sevene/garayi-carwash-v2-sub001/utils"
	"github.com/shopspring/decimal"
)

// Item is one transient cart line. LineId identifies the line within the
// active session only (crew assignment keys on it); it becomes the persisted
// row id on first save. ItemId is the catalog reference: a product id for
// retail items, a service id for washes.
type Item struct {
	LineId    string          `json:"line_id"`
	Kind      models.ItemKind `json:"kind"`
	ItemId    string          `json:"item_id"`
	Sku       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Cart is the open order. CustomerId is empty for walk-ins.
type Cart struct {
	TicketId     string `json:"ticket_id"`
	TicketNumber string `json:"ticket_number"`
	CustomerId   string `json:"customer_id"`
	Items        []Item `json:"items"`
}

// CrewSession maps cart line ids to the employees working that line. It
// lives only while a ticket is open: flattened into crew snapshots at save
// time, rebuilt from them on reopen, cleared on ticket close.
type CrewSession struct {
	mu          sync.Mutex
	assignments map[string][]string
}

func NewCrewSession() *CrewSession {
	return &CrewSession{assignments: make(map[string][]string)}
}

func (s *CrewSession) Assign(lineId string, employeeId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.assignments[lineId] {
		if id == employeeId {
			return
		}
	}
	s.assignments[lineId] = append(s.assignments[lineId], employeeId)
}

func (s *CrewSession) SetCrew(lineId string, employeeIds []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(employeeIds) == 0 {
		delete(s.assignments, lineId)
		return
	}
	s.assignments[lineId] = utils.UniqueSlice(employeeIds)
}

func (s *CrewSession) CrewFor(lineId string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.assignments[lineId]...)
}

// Assignments returns a copy of the whole map, for serialization.
func (s *CrewSession) Assignments() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]string, len(s.assignments))
	for lineId, ids := range s.assignments {
		out[lineId] = append([]string(nil), ids...)
	}
	return out
}

func (s *CrewSession) Remove(lineId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assignments, lineId)
}

func (s *CrewSession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = make(map[string][]string)
}
