package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
)

// QuantityTotal is the summed quantity of one unit.
type QuantityTotal struct {
	Unit     Unit            `json:"unit"`
	Quantity decimal.Decimal `json:"quantity"`
}

// SourceSummary is what one referenced source declaration contributes.
type SourceSummary struct {
	SourceID       id.DeclarationID `json:"source_id"`
	ProductSummary string           `json:"product_summary"`
	Totals         []QuantityTotal  `json:"totals"`
	References     ReferenceNumbers `json:"references"`
	RiskLevel      RiskLevel        `json:"risk_level,omitempty"`
}

// Declaration is the persisted record produced by a successful submit.
//
// Invariants:
//   - Status transitions: pending→approved, pending→rejected, draft→rejected
//   - FilingEligible is false whenever Status is draft
//   - LinkedSourceIDs is non-empty iff SourceType is existing
type Declaration struct {
	ID              id.DeclarationID   `json:"id"`
	Type            Direction          `json:"type"`
	SourceType      SourceType         `json:"source_type"`
	Status          Status             `json:"status"`
	RiskLevel       RiskLevel          `json:"risk_level"`
	LinkedSourceIDs []id.DeclarationID `json:"linked_source_ids,omitempty"`
	Items           []LineItem         `json:"items"`
	SourceSummaries []SourceSummary    `json:"source_summaries,omitempty"`
	ProductSummary  string             `json:"product_summary"`
	PartyID         id.PartyID         `json:"party_id"`
	PartyKind       PartyKind          `json:"party_kind"`
	Documents       []FileRef          `json:"documents"`
	GeoFile         *FileRef           `json:"geo_file,omitempty"`
	Outcome         *Outcome           `json:"outcome,omitempty"`
	References      ReferenceNumbers   `json:"references"`
	Comments        string             `json:"comments,omitempty"`
	ValidFrom       time.Time          `json:"valid_from"`
	ValidTo         time.Time          `json:"valid_to"`
	FilingEligible  bool               `json:"filing_eligible"`
	DraftID         id.DraftID         `json:"draft_id"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// CanTransitionTo checks a review transition.
func (d *Declaration) CanTransitionTo(next Status) error {
	if !d.Status.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "declaration cannot move from %s to %s", d.Status, next)
	}
	return nil
}

// ApplyTransition sets the new status. Must only be called after CanTransitionTo returns nil.
func (d *Declaration) ApplyTransition(next Status, now time.Time) {
	d.Status = next
	if next != StatusApproved {
		d.FilingEligible = false
	}
	d.UpdatedAt = now
}

// Clone returns a deep copy.
func (d *Declaration) Clone() *Declaration {
	if d == nil {
		return nil
	}
	c := *d
	c.LinkedSourceIDs = slices.Clone(d.LinkedSourceIDs)
	c.Items = make([]LineItem, len(d.Items))
	for i, it := range d.Items {
		c.Items[i] = it.clone()
	}
	if d.SourceSummaries != nil {
		c.SourceSummaries = make([]SourceSummary, len(d.SourceSummaries))
		for i, s := range d.SourceSummaries {
			s.Totals = slices.Clone(s.Totals)
			c.SourceSummaries[i] = s
		}
	}
	c.Documents = slices.Clone(d.Documents)
	if d.GeoFile != nil {
		g := *d.GeoFile
		c.GeoFile = &g
	}
	if d.Outcome != nil {
		o := *d.Outcome
		c.Outcome = &o
	}
	return &c
}

// Patch is a partial update to a persisted declaration.
type Patch struct {
	Status    *Status
	Comments  *string
	UpdatedAt time.Time
}

// Filter narrows List results. Zero values mean "any".
type Filter struct {
	Status *Status
	Type   *Direction
	Limit  int
	Offset int
}

// Matches reports whether d satisfies the filter predicates (pagination excluded).
func (f Filter) Matches(d *Declaration) bool {
	if f.Status != nil && d.Status != *f.Status {
		return false
	}
	if f.Type != nil && d.Type != *f.Type {
		return false
	}
	return true
}
