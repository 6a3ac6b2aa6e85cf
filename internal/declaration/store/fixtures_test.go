package store

import (
	"time"

	"github.com/shopspring/decimal"

	"verdant/internal/declaration/models"
	id "verdant/pkg/domain"
)

func testDeclaration(status models.Status) *models.Declaration {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	geo := models.FileRef("plots/estate-4.geojson")
	outcome := models.OutcomeFullyCompliant
	return &models.Declaration{
		Type:       models.DirectionOutbound,
		SourceType: models.SourceFresh,
		Status:     status,
		RiskLevel:  models.RiskLow,
		Items: []models.LineItem{{
			HSNCode:     "1511.10.00",
			ProductName: "Palm Oil",
			Quantity:    decimal.RequireFromString("5000"),
			Unit:        models.UnitKilogram,
		}},
		ProductSummary: "Palm Oil",
		PartyID:        id.NewPartyID(),
		PartyKind:      models.PartyCustomer,
		Documents:      []models.FileRef{"docs/invoice.pdf"},
		GeoFile:        &geo,
		Outcome:        &outcome,
		References:     models.ReferenceNumbers{PONumber: "PO-77"},
		ValidFrom:      now,
		ValidTo:        now.AddDate(1, 0, 0),
		FilingEligible: status == models.StatusPending,
		DraftID:        id.NewDraftID(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
