package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"verdant/internal/declaration/adapters"
	"verdant/internal/declaration/models"
	"verdant/internal/declaration/store"
	"verdant/internal/declaration/verification"
	"verdant/internal/declaration/verification/scripted"
	"verdant/internal/declaration/wizard"
	id "verdant/pkg/domain"
	"verdant/pkg/platform/audit"
	"verdant/pkg/platform/audit/publishers/compliance"
	auditmemory "verdant/pkg/platform/audit/store/memory"
)

// Scenario describes one declaration as a user would enter it.
type Scenario struct {
	Name         string           `yaml:"name"`
	SourceType   string           `yaml:"source_type"`
	Direction    string           `yaml:"direction"`
	Items        []ItemSpec       `yaml:"items"`
	Validity     *ValiditySpec    `yaml:"validity"`
	Documents    []string         `yaml:"documents"`
	GeoFile      string           `yaml:"geo_file"`
	Verification *scripted.Script `yaml:"verification"`
	Party        PartySpec        `yaml:"party"`
	References   ReferencesSpec   `yaml:"references"`
	Comments     string           `yaml:"comments"`
	// Sources are seeded as persisted declarations and selected by an
	// existing-source draft.
	Sources []SourceSpec `yaml:"sources"`
}

type ItemSpec struct {
	HSNCode        string `yaml:"hsn_code"`
	ProductName    string `yaml:"product_name"`
	ScientificName string `yaml:"scientific_name"`
	Quantity       string `yaml:"quantity"`
	Unit           string `yaml:"unit"`
}

type ValiditySpec struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

type PartySpec struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"`
}

type ReferencesSpec struct {
	PONumber       string `yaml:"po_number"`
	SONumber       string `yaml:"so_number"`
	ShipmentNumber string `yaml:"shipment_number"`
}

type SourceSpec struct {
	Status     string         `yaml:"status"`
	RiskLevel  string         `yaml:"risk_level"`
	Items      []ItemSpec     `yaml:"items"`
	References ReferencesSpec `yaml:"references"`
}

// Result is what a scenario run produced.
type Result struct {
	Scenario    string              `json:"scenario,omitempty"`
	DraftID     id.DraftID          `json:"draft_id"`
	Steps       []models.Step       `json:"steps"`
	Declaration *models.Declaration `json:"declaration"`
	AuditTrail  []string            `json:"audit_trail"`
}

// ParseScenario decodes and sanity-checks a scenario document.
func ParseScenario(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	sourceType, err := models.ParseSourceType(sc.SourceType)
	if err != nil {
		return nil, err
	}
	direction, err := models.ParseDirection(sc.Direction)
	if err != nil {
		return nil, err
	}
	sc.SourceType, sc.Direction = string(sourceType), string(direction)
	return &sc, nil
}

// Run walks the scenario through every wizard step and submits it against
// in-memory collaborators.
func Run(ctx context.Context, sc *Scenario, log *slog.Logger) (*Result, error) {
	verifier := scripted.New()
	if sc.Verification != nil && sc.GeoFile != "" {
		verifier.Set(models.FileRef(sc.GeoFile), *sc.Verification)
	}
	declStore := store.NewInMemoryStore()
	auditStore := auditmemory.NewInMemoryStore()

	pipeline, err := verification.New(verifier, verification.WithLogger(log))
	if err != nil {
		return nil, err
	}
	svc, err := wizard.New(pipeline, declStore, adapters.NewMemorySubmitLocker(),
		wizard.WithLogger(log),
		wizard.WithAuditPublisher(compliance.New(auditStore, compliance.WithLogger(log))),
		wizard.WithOperationsAudit(auditStore),
	)
	if err != nil {
		return nil, err
	}
	defer svc.Shutdown(context.WithoutCancel(ctx))

	sourceIDs, err := seedSources(ctx, declStore, sc.Sources)
	if err != nil {
		return nil, err
	}
	items, err := lineItems(sc.Items)
	if err != nil {
		return nil, err
	}

	sess, err := svc.Open(ctx, wizard.OpenRequest{
		SourceType: models.SourceType(sc.SourceType),
		Direction:  models.Direction(sc.Direction),
	})
	if err != nil {
		return nil, err
	}
	res := &Result{Scenario: sc.Name, DraftID: sess.ID()}
	advance := func() error {
		v, err := sess.Advance(ctx)
		if err != nil {
			return fmt.Errorf("advance from %s: %w", sess.Snapshot().Step, err)
		}
		res.Steps = append(res.Steps, v.Step)
		return nil
	}

	if err := advance(); err != nil {
		return nil, err
	}
	details := wizard.DraftPatch{Items: &items}
	if sc.Validity != nil {
		period, err := models.NewValidityPeriod(sc.Validity.Start, sc.Validity.End)
		if err != nil {
			return nil, err
		}
		details.Validity = &period
	}
	if models.SourceType(sc.SourceType) == models.SourceExisting {
		details.SourceIDs = &sourceIDs
	}
	if _, err := sess.UpdateDraft(ctx, details); err != nil {
		return nil, err
	}
	if err := advance(); err != nil {
		return nil, err
	}

	docs := make([]models.FileRef, len(sc.Documents))
	for i, d := range sc.Documents {
		docs[i] = models.FileRef(d)
	}
	var geo *models.FileRef
	if sc.GeoFile != "" {
		ref := models.FileRef(sc.GeoFile)
		geo = &ref
	}
	if _, err := sess.AttachEvidence(ctx, docs, geo); err != nil {
		return nil, err
	}
	if err := advance(); err != nil {
		return nil, err
	}

	party, err := partyRef(sc.Party)
	if err != nil {
		return nil, err
	}
	refs := models.ReferenceNumbers(sc.References)
	if _, err := sess.UpdateDraft(ctx, wizard.DraftPatch{Party: party, References: &refs, Comments: &sc.Comments}); err != nil {
		return nil, err
	}
	if err := advance(); err != nil {
		return nil, err
	}

	sess.Wait()
	if v := sess.Snapshot().Verification; v != nil && v.Err != nil {
		return nil, fmt.Errorf("verification did not settle: %w", v.Err)
	}
	decl, err := sess.Submit(ctx)
	if err != nil {
		return nil, err
	}
	res.Declaration = decl
	res.Steps = append(res.Steps, models.StepSubmitted)

	events, err := auditStore.ListRecent(ctx, 100)
	if err != nil {
		return nil, err
	}
	res.AuditTrail = trail(events)
	return res, nil
}

func seedSources(ctx context.Context, st *store.InMemoryStore, specs []SourceSpec) ([]id.DeclarationID, error) {
	ids := make([]id.DeclarationID, 0, len(specs))
	for i, spec := range specs {
		items, err := lineItems(spec.Items)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i+1, err)
		}
		status := models.StatusApproved
		if spec.Status != "" {
			if status, err = models.ParseStatus(spec.Status); err != nil {
				return nil, fmt.Errorf("source %d: %w", i+1, err)
			}
		}
		risk := models.RiskLevel(spec.RiskLevel)
		if risk == "" {
			risk = models.RiskStandard
		}
		declID, err := st.Create(ctx, &models.Declaration{
			Type:           models.DirectionInbound,
			SourceType:     models.SourceFresh,
			Status:         status,
			RiskLevel:      risk,
			Items:          items,
			PartyID:        id.NewPartyID(),
			PartyKind:      models.PartySupplier,
			References:     models.ReferenceNumbers(spec.References),
			FilingEligible: status != models.StatusDraft,
			DraftID:        id.NewDraftID(),
		})
		if err != nil {
			return nil, fmt.Errorf("seed source %d: %w", i+1, err)
		}
		ids = append(ids, declID)
	}
	return ids, nil
}

func lineItems(specs []ItemSpec) ([]models.LineItem, error) {
	items := make([]models.LineItem, 0, len(specs))
	for i, spec := range specs {
		item := models.LineItem{
			HSNCode:        spec.HSNCode,
			ProductName:    spec.ProductName,
			ScientificName: spec.ScientificName,
			Unit:           models.UnitKilogram,
		}
		if spec.Unit != "" {
			unit, err := models.ParseUnit(spec.Unit)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i+1, err)
			}
			item.Unit = unit
		}
		if spec.Quantity != "" {
			q, err := decimal.NewFromString(spec.Quantity)
			if err != nil {
				return nil, fmt.Errorf("item %d: invalid quantity %q", i+1, spec.Quantity)
			}
			item.Quantity = q
		}
		items = append(items, item)
	}
	return items, nil
}

func partyRef(spec PartySpec) (*models.PartyRef, error) {
	ref := &models.PartyRef{ID: id.NewPartyID(), Kind: models.PartyKind(spec.Kind)}
	if spec.ID != "" {
		partyID, err := id.ParsePartyID(spec.ID)
		if err != nil {
			return nil, err
		}
		ref.ID = partyID
	}
	return ref, nil
}

// trail lists audit actions oldest first.
func trail(events []audit.Event) []string {
	slices.SortStableFunc(events, func(a, b audit.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Action
	}
	return out
}
