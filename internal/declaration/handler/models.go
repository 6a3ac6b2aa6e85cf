package handler

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/wizard"
	id "verdant/pkg/domain"
	dErrors "verdant/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct tags and turns failures into one validation error
// naming every field and the rule it broke.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request")
	}
	fields := make([]string, 0, len(ves))
	for _, ve := range ves {
		fields = append(fields, fmt.Sprintf("%s: %s", ve.Namespace(), ve.Tag()))
	}
	sort.Strings(fields)
	return dErrors.New(dErrors.CodeValidation, "invalid request: "+strings.Join(fields, ", "))
}

// OpenDraftRequest starts a draft.
type OpenDraftRequest struct {
	SourceType string `json:"source_type" validate:"required,oneof=existing fresh"`
	Direction  string `json:"direction" validate:"omitempty,oneof=inbound outbound"`
}

func (r *OpenDraftRequest) Validate() error {
	r.SourceType = strings.ToLower(strings.TrimSpace(r.SourceType))
	r.Direction = strings.ToLower(strings.TrimSpace(r.Direction))
	return validateStruct(r)
}

func (r *OpenDraftRequest) toOpen() wizard.OpenRequest {
	return wizard.OpenRequest{
		SourceType: models.SourceType(r.SourceType),
		Direction:  models.Direction(r.Direction),
	}
}

// ItemRequest is one line item. Fields may be partial while the draft is edited.
type ItemRequest struct {
	HSNCode        string `json:"hsn_code" validate:"max=32"`
	ProductName    string `json:"product_name" validate:"max=200"`
	ScientificName string `json:"scientific_name" validate:"max=200"`
	Quantity       string `json:"quantity" validate:"omitempty,numeric"`
	Unit           string `json:"unit" validate:"omitempty,oneof=kg tonne litre m3 piece"`
	SourceID       string `json:"source_id" validate:"omitempty,uuid"`
}

func (r ItemRequest) toItem() (models.LineItem, error) {
	item := models.LineItem{
		HSNCode:        strings.TrimSpace(r.HSNCode),
		ProductName:    strings.TrimSpace(r.ProductName),
		ScientificName: strings.TrimSpace(r.ScientificName),
		Unit:           models.Unit(r.Unit),
	}
	if r.Quantity != "" {
		q, err := decimal.NewFromString(r.Quantity)
		if err != nil {
			return item, dErrors.Newf(dErrors.CodeInvalidInput, "invalid quantity %q", r.Quantity)
		}
		item.Quantity = q
	}
	if r.SourceID != "" {
		sid, err := id.ParseDeclarationID(r.SourceID)
		if err != nil {
			return item, err
		}
		item.SourceID = &sid
	}
	return item, nil
}

type ValidityRequest struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtefield=Start"`
}

type PartyRequest struct {
	ID   string `json:"id" validate:"required,uuid"`
	Kind string `json:"kind" validate:"omitempty,oneof=supplier customer"`
}

type ReferencesRequest struct {
	PONumber       string `json:"po_number" validate:"max=64"`
	SONumber       string `json:"so_number" validate:"max=64"`
	ShipmentNumber string `json:"shipment_number" validate:"max=64"`
}

// UpdateDraftRequest is a partial draft update. Absent fields are unchanged.
type UpdateDraftRequest struct {
	SourceType *string            `json:"source_type" validate:"omitempty,oneof=existing fresh"`
	Direction  *string            `json:"direction" validate:"omitempty,oneof=inbound outbound"`
	Items      *[]ItemRequest     `json:"items" validate:"omitempty,max=500,dive"`
	Validity   *ValidityRequest   `json:"validity"`
	Party      *PartyRequest      `json:"party"`
	References *ReferencesRequest `json:"references"`
	Comments   *string            `json:"comments" validate:"omitempty,max=2000"`
	SourceIDs  *[]string          `json:"source_ids" validate:"omitempty,max=100,dive,uuid"`
}

func (r *UpdateDraftRequest) Validate() error {
	return validateStruct(r)
}

func (r *UpdateDraftRequest) toPatch() (wizard.DraftPatch, error) {
	var p wizard.DraftPatch
	if r.SourceType != nil {
		st := models.SourceType(*r.SourceType)
		p.SourceType = &st
	}
	if r.Direction != nil {
		d := models.Direction(*r.Direction)
		p.Direction = &d
	}
	if r.Items != nil {
		items := make([]models.LineItem, 0, len(*r.Items))
		for i, ir := range *r.Items {
			item, err := ir.toItem()
			if err != nil {
				return p, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("item %d", i+1))
			}
			items = append(items, item)
		}
		p.Items = &items
	}
	if r.Validity != nil {
		period, err := models.NewValidityPeriod(r.Validity.Start, r.Validity.End)
		if err != nil {
			return p, err
		}
		p.Validity = &period
	}
	if r.Party != nil {
		partyID, err := id.ParsePartyID(r.Party.ID)
		if err != nil {
			return p, err
		}
		p.Party = &models.PartyRef{ID: partyID, Kind: models.PartyKind(r.Party.Kind)}
	}
	if r.References != nil {
		p.References = &models.ReferenceNumbers{
			PONumber:       strings.TrimSpace(r.References.PONumber),
			SONumber:       strings.TrimSpace(r.References.SONumber),
			ShipmentNumber: strings.TrimSpace(r.References.ShipmentNumber),
		}
	}
	p.Comments = r.Comments
	if r.SourceIDs != nil {
		ids := make([]id.DeclarationID, 0, len(*r.SourceIDs))
		for _, raw := range *r.SourceIDs {
			sid, err := id.ParseDeclarationID(raw)
			if err != nil {
				return p, err
			}
			ids = append(ids, sid)
		}
		p.SourceIDs = &ids
	}
	return p, nil
}

// EvidenceRequest replaces documents and optionally attaches a geo file.
// A null documents list keeps the current documents.
type EvidenceRequest struct {
	Documents []string `json:"documents" validate:"omitempty,max=50,dive,required,max=512"`
	GeoFile   *string  `json:"geo_file" validate:"omitempty,min=1,max=512"`
}

func (r *EvidenceRequest) Validate() error {
	return validateStruct(r)
}

func (r *EvidenceRequest) documents() []models.FileRef {
	if r.Documents == nil {
		return nil
	}
	out := make([]models.FileRef, len(r.Documents))
	for i, d := range r.Documents {
		out[i] = models.FileRef(d)
	}
	return out
}

func (r *EvidenceRequest) geoFile() *models.FileRef {
	if r.GeoFile == nil {
		return nil
	}
	ref := models.FileRef(*r.GeoFile)
	return &ref
}

// GoToRequest navigates back to a completed step.
type GoToRequest struct {
	Step string `json:"step" validate:"required,oneof=type_select detail_entry evidence_upload party_detail review"`
}

func (r *GoToRequest) Validate() error {
	return validateStruct(r)
}

// ReviewRequest carries a reviewer's verdict.
type ReviewRequest struct {
	Decision string  `json:"decision" validate:"required,oneof=approve reject"`
	Comments *string `json:"comments" validate:"omitempty,max=2000"`
	ActorID  string  `json:"actor_id" validate:"max=128"`
}

func (r *ReviewRequest) Validate() error {
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
	return validateStruct(r)
}

// VerificationResponse is the verification slot of a fresh draft.
type VerificationResponse struct {
	Geometry   models.StageStatus     `json:"geometry"`
	Satellite  models.StageStatus     `json:"satellite"`
	Generation uint64                 `json:"generation"`
	Outcome    *models.Outcome        `json:"outcome,omitempty"`
	Error      *VerificationErrorBody `json:"error,omitempty"`
}

type VerificationErrorBody struct {
	Stage     models.Stage `json:"stage"`
	Category  string       `json:"category"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
}

// DraftResponse is the wire form of a wizard snapshot.
type DraftResponse struct {
	DraftID       string                  `json:"draft_id"`
	Step          models.Step             `json:"step"`
	Completed     []models.Step           `json:"completed"`
	SourceType    models.SourceType       `json:"source_type"`
	Direction     models.Direction        `json:"direction"`
	Items         []models.LineItem       `json:"items"`
	Validity      *models.ValidityPeriod  `json:"validity,omitempty"`
	Documents     []models.FileRef        `json:"documents"`
	Party         *models.PartyRef        `json:"party,omitempty"`
	References    models.ReferenceNumbers `json:"references"`
	Comments      string                  `json:"comments,omitempty"`
	SourceIDs     []id.DeclarationID      `json:"source_ids,omitempty"`
	GeoFile       *models.FileRef         `json:"geo_file,omitempty"`
	Verification  *VerificationResponse   `json:"verification,omitempty"`
	DeclarationID *id.DeclarationID       `json:"declaration_id,omitempty"`
	Cancelled     bool                    `json:"cancelled,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

func toDraftResponse(v wizard.View) DraftResponse {
	d := v.Draft
	resp := DraftResponse{
		DraftID:       v.DraftID.String(),
		Step:          v.Step,
		Completed:     v.Completed,
		SourceType:    d.SourceType(),
		Direction:     d.Direction,
		Items:         d.Items,
		Validity:      d.Validity,
		Documents:     d.Documents,
		Party:         d.Party,
		References:    d.References,
		Comments:      d.Comments,
		DeclarationID: v.DeclarationID,
		Cancelled:     v.Cancelled,
		CreatedAt:     d.CreatedAt,
	}
	if resp.Completed == nil {
		resp.Completed = []models.Step{}
	}
	if resp.Items == nil {
		resp.Items = []models.LineItem{}
	}
	if resp.Documents == nil {
		resp.Documents = []models.FileRef{}
	}
	if src, ok := d.Existing(); ok {
		resp.SourceIDs = src.SourceIDs
	}
	if f, ok := d.Fresh(); ok {
		resp.GeoFile = f.GeoFile
	}
	if vv := v.Verification; vv != nil {
		vr := &VerificationResponse{
			Geometry:   vv.Geometry,
			Satellite:  vv.Satellite,
			Generation: vv.Generation,
			Outcome:    vv.Outcome,
		}
		if vv.Err != nil {
			vr.Error = &VerificationErrorBody{
				Stage:     vv.Err.Stage,
				Category:  string(vv.Err.Category),
				Message:   vv.Err.Message,
				Retryable: vv.Err.Retryable,
			}
		}
		resp.Verification = vr
	}
	return resp
}

// DeclarationListResponse wraps a page of declarations.
type DeclarationListResponse struct {
	Declarations []*models.Declaration `json:"declarations"`
	Count        int                   `json:"count"`
}
