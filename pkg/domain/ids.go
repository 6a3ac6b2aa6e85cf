// Package domain holds the typed identifiers shared across bounded contexts.
//
// Every identifier is a distinct named type over uuid.UUID so the compiler
// rejects passing a PartyID where a DeclarationID is expected. Parse functions
// are the trust boundary for identifiers arriving from HTTP paths, CLI files
// and persisted rows.
package domain

import (
	"github.com/google/uuid"

	dErrors "verdant/pkg/domain-errors"
)

// DeclarationID identifies a persisted declaration.
type DeclarationID uuid.UUID

// DraftID identifies an in-progress declaration draft (one wizard session).
type DraftID uuid.UUID

// PartyID identifies a counterparty: a supplier for inbound declarations,
// a customer for outbound ones.
type PartyID uuid.UUID

func (id DeclarationID) String() string { return uuid.UUID(id).String() }
func (id DeclarationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id DraftID) String() string { return uuid.UUID(id).String() }
func (id DraftID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id PartyID) String() string { return uuid.UUID(id).String() }
func (id PartyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewDeclarationID returns a fresh random declaration ID.
func NewDeclarationID() DeclarationID { return DeclarationID(uuid.New()) }

// NewDraftID returns a fresh random draft ID.
func NewDraftID() DraftID { return DraftID(uuid.New()) }

// NewPartyID returns a random PartyID. Parties are owned elsewhere; this is for fixtures and tooling.
func NewPartyID() PartyID { return PartyID(uuid.New()) }

// ParseDeclarationID parses and validates a declaration ID.
func ParseDeclarationID(s string) (DeclarationID, error) {
	u, err := parseUUID(s, "declaration ID")
	return DeclarationID(u), err
}

// ParseDraftID parses and validates a draft ID.
func ParseDraftID(s string) (DraftID, error) {
	u, err := parseUUID(s, "draft ID")
	return DraftID(u), err
}

// ParsePartyID parses and validates a party ID.
func ParsePartyID(s string) (PartyID, error) {
	u, err := parseUUID(s, "party ID")
	return PartyID(u), err
}

// parseUUID rejects empty input, malformed UUIDs and the nil UUID.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}

// MarshalText lets typed IDs serialize as plain UUID strings in JSON and YAML.
func (id DeclarationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText parses a declaration ID from its string form.
func (id *DeclarationID) UnmarshalText(b []byte) error {
	parsed, err := ParseDeclarationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id DraftID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *DraftID) UnmarshalText(b []byte) error {
	parsed, err := ParseDraftID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id PartyID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *PartyID) UnmarshalText(b []byte) error {
	parsed, err := ParsePartyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
