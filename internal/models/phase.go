package models

import "fmt"

// Category identifies one of the portal's entity categories.
type Category string

const (
	CategoryExperts       Category = "experts"
	CategoryFacilities    Category = "facilities"
	CategoryOrganizations Category = "organizations"
)

// Stage identifies the extraction stage within a category.
type Stage string

const (
	StageHarvest Stage = "harvest" // paginated list harvest of summary records
	StageDetail  Stage = "detail"  // per-record deep detail scrape
)

// Phase is one category/stage pairing run as an independent traversal
// with its own checkpoint, ledger and session.
type Phase struct {
	Category Category `json:"category"`
	Stage    Stage    `json:"stage"`
}

// ID returns the stable phase identifier used for checkpoint and ledger files.
func (p Phase) ID() string {
	return fmt.Sprintf("%s-%s", p.Category, p.Stage)
}

func (p Phase) String() string {
	return p.ID()
}

// AllPhases returns the six phases in pipeline order. Detail stages depend on
// their category's harvest stage having produced a master list.
func AllPhases() []Phase {
	return []Phase{
		{CategoryExperts, StageHarvest},
		{CategoryExperts, StageDetail},
		{CategoryFacilities, StageHarvest},
		{CategoryFacilities, StageDetail},
		{CategoryOrganizations, StageHarvest},
		{CategoryOrganizations, StageDetail},
	}
}

// ParsePhase parses a phase identifier like "experts-harvest".
func ParsePhase(id string) (Phase, error) {
	for _, p := range AllPhases() {
		if p.ID() == id {
			return p, nil
		}
	}
	return Phase{}, fmt.Errorf("unknown phase %q", id)
}
