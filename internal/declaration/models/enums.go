package models

import (
	"strings"

	dErrors "verdant/pkg/domain-errors"
)

// SourceType selects how a declaration is assembled.
type SourceType string

const (
	// SourceExisting builds a declaration from previously approved declarations.
	SourceExisting SourceType = "existing"
	// SourceFresh builds a declaration from newly entered shipment data.
	SourceFresh SourceType = "fresh"
)

func (s SourceType) IsValid() bool {
	return s == SourceExisting || s == SourceFresh
}

func (s SourceType) String() string { return string(s) }

// ParseSourceType parses "existing" or "fresh".
func ParseSourceType(s string) (SourceType, error) {
	st := SourceType(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown source type %q", s)
	}
	return st, nil
}

// Direction is the declaration type: goods arriving or leaving.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

func (d Direction) IsValid() bool {
	return d == DirectionInbound || d == DirectionOutbound
}

func (d Direction) String() string { return string(d) }

// PartyKind returns the counterparty kind for this direction:
// suppliers ship inbound goods, customers receive outbound goods.
func (d Direction) PartyKind() PartyKind {
	if d == DirectionInbound {
		return PartySupplier
	}
	return PartyCustomer
}

// ParseDirection parses a direction. Empty input defaults to outbound.
func ParseDirection(s string) (Direction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DirectionOutbound, nil
	}
	d := Direction(s)
	if !d.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown direction %q", s)
	}
	return d, nil
}

// PartyKind distinguishes suppliers from customers.
type PartyKind string

const (
	PartySupplier PartyKind = "supplier"
	PartyCustomer PartyKind = "customer"
)

func (k PartyKind) IsValid() bool {
	return k == PartySupplier || k == PartyCustomer
}

// Unit is a closed set of quantity units.
type Unit string

const (
	UnitKilogram   Unit = "kg"
	UnitTonne      Unit = "tonne"
	UnitLitre      Unit = "litre"
	UnitCubicMetre Unit = "m3"
	UnitPiece      Unit = "piece"
)

func (u Unit) IsValid() bool {
	switch u {
	case UnitKilogram, UnitTonne, UnitLitre, UnitCubicMetre, UnitPiece:
		return true
	}
	return false
}

// ParseUnit parses a unit, rejecting anything outside the closed set.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if !u.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown unit %q", s)
	}
	return u, nil
}

// Status is the persisted declaration status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDraft, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus parses a status name.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
	}
	return st, nil
}

// CanTransitionTo reports whether a persisted declaration may move from s to next.
// Allowed: pending→approved, pending→rejected, draft→rejected.
// A draft never becomes pending through an update; corrections are resubmitted.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusDraft:
		return next == StatusRejected
	default:
		return false
	}
}

// RiskLevel grades a declaration for downstream review.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskStandard RiskLevel = "standard"
	RiskHigh     RiskLevel = "high"
)

// Rank orders risk levels; unknown values rank as standard.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskHigh:
		return 2
	default:
		return 1
	}
}
