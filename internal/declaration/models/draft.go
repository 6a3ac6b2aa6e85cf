package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
)

// LineItem is one product line of a declaration.
type LineItem struct {
	HSNCode        string            `json:"hsn_code"`
	ProductName    string            `json:"product_name"`
	ScientificName string            `json:"scientific_name,omitempty"`
	Quantity       decimal.Decimal   `json:"quantity"`
	Unit           Unit              `json:"unit"`
	SourceID       *id.DeclarationID `json:"source_id,omitempty"`
}

// IsValid reports whether the item has an HSN code, a product name and a positive quantity.
func (li LineItem) IsValid() bool {
	return len(li.MissingFields()) == 0
}

// MissingFields names the required fields the item lacks.
func (li LineItem) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(li.HSNCode) == "" {
		missing = append(missing, "hsn code")
	}
	if strings.TrimSpace(li.ProductName) == "" {
		missing = append(missing, "product name")
	}
	if !li.Quantity.IsPositive() {
		missing = append(missing, "quantity")
	}
	return missing
}

func (li LineItem) clone() LineItem {
	if li.SourceID != nil {
		sid := *li.SourceID
		li.SourceID = &sid
	}
	return li
}

// ValidityPeriod is the date range a declaration covers.
// Invariant: End is not before Start.
type ValidityPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewValidityPeriod builds a period, rejecting inverted ranges.
func NewValidityPeriod(start, end time.Time) (ValidityPeriod, error) {
	if end.Before(start) {
		return ValidityPeriod{}, dErrors.New(dErrors.CodeValidation, "validity period end must not be before start")
	}
	return ValidityPeriod{Start: start, End: end}, nil
}

// Complete reports whether both dates are set.
func (p *ValidityPeriod) Complete() bool {
	return p != nil && !p.Start.IsZero() && !p.End.IsZero()
}

// FileRef is an opaque reference to an uploaded file. It is never parsed.
type FileRef string

// PartyRef is the selected counterparty.
type PartyRef struct {
	Kind PartyKind  `json:"kind"`
	ID   id.PartyID `json:"id"`
}

// ReferenceNumbers are optional free-text shipment references.
type ReferenceNumbers struct {
	PONumber       string `json:"po_number,omitempty"`
	SONumber       string `json:"so_number,omitempty"`
	ShipmentNumber string `json:"shipment_number,omitempty"`
}

// Source is the tagged variant carried by a draft.
// Implemented by ExistingSource and FreshSource only.
type Source interface {
	Type() SourceType
	cloneSource() Source
}

// ExistingSource references previously approved declarations. SourceIDs has set semantics.
type ExistingSource struct {
	SourceIDs []id.DeclarationID
}

func (*ExistingSource) Type() SourceType { return SourceExisting }

func (s *ExistingSource) cloneSource() Source {
	return &ExistingSource{SourceIDs: slices.Clone(s.SourceIDs)}
}

// FreshSource carries the geo evidence of a fresh declaration.
// Verification is nil until a geo file is attached.
type FreshSource struct {
	GeoFile      *FileRef
	Verification *VerificationState
}

func (*FreshSource) Type() SourceType { return SourceFresh }

func (s *FreshSource) cloneSource() Source {
	c := &FreshSource{Verification: s.Verification.Clone()}
	if s.GeoFile != nil {
		ref := *s.GeoFile
		c.GeoFile = &ref
	}
	return c
}

// NewSource returns an empty source of the given type.
func NewSource(t SourceType) Source {
	if t == SourceExisting {
		return &ExistingSource{}
	}
	return &FreshSource{}
}

// Draft is the working document assembled by the wizard.
type Draft struct {
	ID         id.DraftID
	Direction  Direction
	Source     Source
	Items      []LineItem
	Validity   *ValidityPeriod
	Documents  []FileRef
	Party      *PartyRef
	References ReferenceNumbers
	Comments   string
	CreatedAt  time.Time
}

// NewDraft creates an empty draft.
func NewDraft(draftID id.DraftID, sourceType SourceType, direction Direction, now time.Time) *Draft {
	return &Draft{
		ID:        draftID,
		Direction: direction,
		Source:    NewSource(sourceType),
		CreatedAt: now,
	}
}

// SourceType returns the variant tag.
func (d *Draft) SourceType() SourceType {
	return d.Source.Type()
}

// Existing returns the existing-based variant, if that is the draft's source.
func (d *Draft) Existing() (*ExistingSource, bool) {
	s, ok := d.Source.(*ExistingSource)
	return s, ok
}

// Fresh returns the fresh variant, if that is the draft's source.
func (d *Draft) Fresh() (*FreshSource, bool) {
	s, ok := d.Source.(*FreshSource)
	return s, ok
}

// ValidItems returns the items satisfying LineItem.IsValid.
func (d *Draft) ValidItems() []LineItem {
	var out []LineItem
	for _, it := range d.Items {
		if it.IsValid() {
			out = append(out, it)
		}
	}
	return out
}

// Verification returns the fresh draft's verification state, or nil.
func (d *Draft) Verification() *VerificationState {
	if f, ok := d.Fresh(); ok {
		return f.Verification
	}
	return nil
}

// Clone returns a deep copy that shares no mutable state with d.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.Source = d.Source.cloneSource()
	c.Items = make([]LineItem, len(d.Items))
	for i, it := range d.Items {
		c.Items[i] = it.clone()
	}
	c.Documents = slices.Clone(d.Documents)
	if d.Validity != nil {
		v := *d.Validity
		c.Validity = &v
	}
	if d.Party != nil {
		p := *d.Party
		c.Party = &p
	}
	return &c
}
