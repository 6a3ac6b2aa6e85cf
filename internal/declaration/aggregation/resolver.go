// Package aggregation folds selected source declarations into the derived
// fields of an existing-based declaration.
package aggregation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/ports"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
	pkgstrings "verdant/pkg/platform/strings"
)

// ErrNoSourcesSelected is returned when the resolved source set is empty.
// Step validation makes this unreachable in practice.
var ErrNoSourcesSelected = errors.New("no sources selected")

// Payload is what the resolver contributes to the new declaration.
type Payload struct {
	LinkedSourceIDs []id.DeclarationID
	SourceSummaries []models.SourceSummary
	ProductSummary  string
	References      models.ReferenceNumbers
	Items           []models.LineItem
	SourceRisks     []models.RiskLevel
}

// Resolver reads source declarations through the store.
type Resolver struct {
	store ports.DeclarationStore
}

// New creates a resolver. The store is required.
func New(store ports.DeclarationStore) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("declaration store is required")
	}
	return &Resolver{store: store}, nil
}

// Resolve fetches every source and builds the aggregated payload.
// Summaries keep the order of sourceIDs. draftRefs win over source references
// field by field; draftItems are carried through unchanged.
func (r *Resolver) Resolve(ctx context.Context, sourceIDs []id.DeclarationID, draftItems []models.LineItem, draftRefs models.ReferenceNumbers) (*Payload, error) {
	if len(sourceIDs) == 0 {
		return nil, &dErrors.Error{Code: dErrors.CodeAggregationFailed, Message: "no source declarations selected", Err: ErrNoSourcesSelected}
	}
	if dup, ok := duplicate(sourceIDs); ok {
		return nil, dErrors.Newf(dErrors.CodeValidation, "source declaration %s is selected more than once", dup)
	}

	found, err := r.store.ListByIDs(ctx, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("loading source declarations: %w", err)
	}
	byID := make(map[id.DeclarationID]*models.Declaration, len(found))
	for _, d := range found {
		byID[d.ID] = d
	}

	var missing, unapproved []string
	sources := make([]*models.Declaration, 0, len(sourceIDs))
	for _, sid := range sourceIDs {
		d, ok := byID[sid]
		switch {
		case !ok:
			missing = append(missing, sid.String())
		case d.Status != models.StatusApproved:
			unapproved = append(unapproved, fmt.Sprintf("%s (%s)", sid, d.Status))
		default:
			sources = append(sources, d)
		}
	}
	if len(missing) > 0 {
		return nil, dErrors.Newf(dErrors.CodeAggregationFailed, "source declarations not found: %s", strings.Join(missing, ", "))
	}
	if len(unapproved) > 0 {
		return nil, dErrors.Newf(dErrors.CodeAggregationFailed, "source declarations are not approved: %s", strings.Join(unapproved, ", "))
	}

	p := &Payload{
		LinkedSourceIDs: slices.Clone(sourceIDs),
		SourceSummaries: make([]models.SourceSummary, 0, len(sources)),
		Items:           slices.Clone(draftItems),
		SourceRisks:     make([]models.RiskLevel, 0, len(sources)),
	}
	refs := make([]models.ReferenceNumbers, 0, len(sources))
	products := make([]string, 0, len(sources))
	for _, src := range sources {
		summary := Summarize(src)
		p.SourceSummaries = append(p.SourceSummaries, summary)
		p.SourceRisks = append(p.SourceRisks, src.RiskLevel)
		refs = append(refs, src.References)
		products = append(products, summary.ProductSummary)
	}
	p.ProductSummary = joinUnique(products)
	p.References = MergeReferences(draftRefs, refs)
	return p, nil
}

// Summarize reduces one source declaration to its contribution.
func Summarize(d *models.Declaration) models.SourceSummary {
	product := d.ProductSummary
	if product == "" {
		product = ProductSummary(d.Items)
	}
	return models.SourceSummary{
		SourceID:       d.ID,
		ProductSummary: product,
		Totals:         Totals(d.Items),
		References:     d.References,
		RiskLevel:      d.RiskLevel,
	}
}

// ProductSummary lists the distinct product names of valid items, in entry order.
func ProductSummary(items []models.LineItem) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		if it.IsValid() {
			names = append(names, strings.TrimSpace(it.ProductName))
		}
	}
	return joinUnique(names)
}

// Totals sums valid item quantities per unit, in first-seen unit order.
func Totals(items []models.LineItem) []models.QuantityTotal {
	var out []models.QuantityTotal
	index := make(map[models.Unit]int)
	for _, it := range items {
		if !it.IsValid() {
			continue
		}
		i, ok := index[it.Unit]
		if !ok {
			index[it.Unit] = len(out)
			out = append(out, models.QuantityTotal{Unit: it.Unit, Quantity: decimal.Zero})
			i = len(out) - 1
		}
		out[i].Quantity = out[i].Quantity.Add(it.Quantity)
	}
	return out
}

// MergeReferences fills each empty draft field with the unique, non-blank
// source values joined by ", ".
func MergeReferences(draft models.ReferenceNumbers, sources []models.ReferenceNumbers) models.ReferenceNumbers {
	pick := func(own string, field func(models.ReferenceNumbers) string) string {
		if strings.TrimSpace(own) != "" {
			return own
		}
		vals := make([]string, 0, len(sources))
		for _, s := range sources {
			vals = append(vals, field(s))
		}
		return joinUnique(vals)
	}
	return models.ReferenceNumbers{
		PONumber:       pick(draft.PONumber, func(r models.ReferenceNumbers) string { return r.PONumber }),
		SONumber:       pick(draft.SONumber, func(r models.ReferenceNumbers) string { return r.SONumber }),
		ShipmentNumber: pick(draft.ShipmentNumber, func(r models.ReferenceNumbers) string { return r.ShipmentNumber }),
	}
}

func joinUnique(vals []string) string {
	return pkgstrings.JoinDistinct(vals)
}

func duplicate(ids []id.DeclarationID) (id.DeclarationID, bool) {
	seen := make(map[id.DeclarationID]struct{}, len(ids))
	for _, sid := range ids {
		if _, ok := seen[sid]; ok {
			return sid, true
		}
		seen[sid] = struct{}{}
	}
	return id.DeclarationID{}, false
}
