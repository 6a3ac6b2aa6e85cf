package models

// Stage names one verification stage.
type Stage string

const (
	StageGeometry  Stage = "geometry"
	StageSatellite Stage = "satellite"
)

// StageStatus is the tri-state (plus unstarted) result of one stage.
type StageStatus string

const (
	StageUnstarted    StageStatus = "unstarted"
	StagePending      StageStatus = "pending"
	StageCompliant    StageStatus = "compliant"
	StageNonCompliant StageStatus = "non_compliant"
)

// Resolved reports whether the stage reached a result.
func (s StageStatus) Resolved() bool {
	return s == StageCompliant || s == StageNonCompliant
}

// Outcome is the terminal result of a verification run.
type Outcome string

const (
	OutcomeFullyCompliant        Outcome = "fully_compliant"
	OutcomeNonCompliantGeometry  Outcome = "non_compliant_geometry"
	OutcomeNonCompliantSatellite Outcome = "non_compliant_satellite"
)

func (o Outcome) Compliant() bool {
	return o == OutcomeFullyCompliant
}

func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeFullyCompliant, OutcomeNonCompliantGeometry, OutcomeNonCompliantSatellite:
		return true
	}
	return false
}

// VerificationState tracks the pipeline for the currently attached geo file.
//
// Invariants:
//   - Satellite leaves unstarted only once Geometry is compliant
//   - Generation identifies the geo file attachment; deliveries from older
//     generations are dropped
//   - Err is the last stage error; the failed stage stays pending
type VerificationState struct {
	Geometry   StageStatus `json:"geometry"`
	Satellite  StageStatus `json:"satellite"`
	Generation uint64      `json:"generation"`
	Err        error       `json:"-"`
}

// NewVerificationState returns {unstarted, unstarted} for a generation.
func NewVerificationState(generation uint64) *VerificationState {
	return &VerificationState{
		Geometry:   StageUnstarted,
		Satellite:  StageUnstarted,
		Generation: generation,
	}
}

// Outcome returns the terminal outcome and whether verification has settled.
func (v *VerificationState) Outcome() (Outcome, bool) {
	if v == nil {
		return "", false
	}
	switch {
	case v.Geometry == StageNonCompliant:
		return OutcomeNonCompliantGeometry, true
	case v.Geometry == StageCompliant && v.Satellite == StageNonCompliant:
		return OutcomeNonCompliantSatellite, true
	case v.Geometry == StageCompliant && v.Satellite == StageCompliant:
		return OutcomeFullyCompliant, true
	}
	return "", false
}

// Status returns the status of one stage.
func (v *VerificationState) Status(stage Stage) StageStatus {
	if stage == StageSatellite {
		return v.Satellite
	}
	return v.Geometry
}

// Set updates one stage, refusing updates that would break the ordering invariant.
func (v *VerificationState) Set(stage Stage, status StageStatus) bool {
	switch stage {
	case StageGeometry:
		if v.Geometry.Resolved() {
			return false
		}
		v.Geometry = status
	case StageSatellite:
		if v.Geometry != StageCompliant || v.Satellite.Resolved() {
			return false
		}
		v.Satellite = status
	default:
		return false
	}
	return true
}

// UnresolvedStage returns the stage a resumed run must start from.
func (v *VerificationState) UnresolvedStage() (Stage, bool) {
	if !v.Geometry.Resolved() {
		return StageGeometry, true
	}
	if v.Geometry == StageCompliant && !v.Satellite.Resolved() {
		return StageSatellite, true
	}
	return "", false
}

// Clone returns a copy; Err is shared (errors are immutable values).
func (v *VerificationState) Clone() *VerificationState {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CheckResult is the two-outcome answer of one external verification check.
type CheckResult string

const (
	ResultCompliant    CheckResult = "compliant"
	ResultNonCompliant CheckResult = "non_compliant"
)

func (r CheckResult) IsValid() bool {
	return r == ResultCompliant || r == ResultNonCompliant
}

// StageStatus maps a check result onto a resolved stage status.
func (r CheckResult) StageStatus() StageStatus {
	if r == ResultCompliant {
		return StageCompliant
	}
	return StageNonCompliant
}
