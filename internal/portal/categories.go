package portal

import (
	"fmt"

	"github.com/ternarybob/messis/internal/models"
)

// SectionKind selects the extraction strategy for one detail-page panel.
type SectionKind int

const (
	// SectionFlat extracts label/value rows into a single flat record.
	SectionFlat SectionKind = iota
	// SectionGrid extracts a Kendo grid table into a list of records.
	SectionGrid
	// SectionList extracts tag or list items, falling back from a grid.
	SectionList
)

// ColumnMapping binds one listing-table cell to a named summary field.
type ColumnMapping struct {
	Cell  int
	Field string
	// YesNo cells render a checkbox icon instead of text.
	YesNo bool
}

// SectionDescriptor locates one accordion panel on a detail page. Panels
// with a stable element id are addressed by PanelID; the rest by ordinal
// position within the panel bar.
type SectionDescriptor struct {
	Name       string
	PanelID    string
	PanelIndex int
	Kind       SectionKind
}

// CategoryDescriptor is the static portal layout for one category: where
// its listing lives, how its rows map to fields, and which detail-page
// sections exist.
type CategoryDescriptor struct {
	Category      models.Category
	ListPath      string
	HasPartitions bool
	// MinCells guards against summary rows from nested or collapsed tables.
	MinCells int
	Columns  []ColumnMapping
	// RecordIDCell is -1 when the listing carries no natural identifier.
	RecordIDCell int
	// DetailLinkCell is -1 when the details link must be searched row-wide.
	DetailLinkCell int
	Sections       []SectionDescriptor
}

var expertDescriptor = CategoryDescriptor{
	Category:      models.CategoryExperts,
	ListPath:      "/ExpertAdmin/Index",
	HasPartitions: true,
	MinCells:      9,
	Columns: []ColumnMapping{
		{Cell: 1, Field: "Expert_ID"},
		{Cell: 4, Field: "Facility"},
		{Cell: 6, Field: "Expert_Type"},
		{Cell: 7, Field: "Position"},
		{Cell: 8, Field: "Name"},
	},
	RecordIDCell:   1,
	DetailLinkCell: -1,
	Sections: []SectionDescriptor{
		{Name: "General_Information", PanelID: "ProfileBar-1", PanelIndex: 0, Kind: SectionFlat},
		{Name: "Details", PanelID: "ProfileBar-2", PanelIndex: 1, Kind: SectionFlat},
		{Name: "Expert_Demographics", PanelID: "ProfileBar-3", PanelIndex: 2, Kind: SectionFlat},
		{Name: "Expertise", PanelID: "ProfileBar-4", PanelIndex: 3, Kind: SectionGrid},
		{Name: "Price_Availability", PanelID: "ProfileBar-5", PanelIndex: 4, Kind: SectionFlat},
		{Name: "Facility_Affiliation", PanelID: "ProfileBar-6", PanelIndex: 5, Kind: SectionGrid},
		{Name: "Web_Presence", PanelID: "ProfileBar-8", PanelIndex: 6, Kind: SectionGrid},
		{Name: "OCIP_Activity", PanelID: "ProfileBar-9", PanelIndex: 7, Kind: SectionGrid},
		{Name: "Audit_Trail", PanelID: "ProfileBar-10", PanelIndex: 8, Kind: SectionFlat},
	},
}

var facilityDescriptor = CategoryDescriptor{
	Category:      models.CategoryFacilities,
	ListPath:      "/FacilityAdmin/Index",
	HasPartitions: true,
	MinCells:      16,
	Columns: []ColumnMapping{
		{Cell: 1, Field: "Facility_ID"},
		{Cell: 3, Field: "Facility_Name"},
		{Cell: 4, Field: "Type"},
	},
	RecordIDCell:   1,
	DetailLinkCell: 15,
	Sections: []SectionDescriptor{
		{Name: "General_Information", PanelIndex: 0, Kind: SectionFlat},
		{Name: "Academic_Unit_Details", PanelIndex: 1, Kind: SectionFlat},
		{Name: "Provinces_Served", PanelIndex: 2, Kind: SectionList},
		{Name: "Activities_Offered", PanelIndex: 3, Kind: SectionList},
		{Name: "Sectors_Served", PanelIndex: 4, Kind: SectionList},
		{Name: "Contacts", PanelIndex: 5, Kind: SectionGrid},
		{Name: "Locations", PanelIndex: 6, Kind: SectionGrid},
		{Name: "Facility_Descriptors", PanelIndex: 7, Kind: SectionFlat},
		{Name: "Languages_Serviced", PanelIndex: 8, Kind: SectionList},
		{Name: "Web_Presence", PanelIndex: 9, Kind: SectionGrid},
		{Name: "OCIP_Activity", PanelIndex: 10, Kind: SectionGrid},
		{Name: "Audit_Trail", PanelIndex: 11, Kind: SectionFlat},
	},
}

var organizationDescriptor = CategoryDescriptor{
	Category:      models.CategoryOrganizations,
	ListPath:      "/BusinessAdmin/Index",
	HasPartitions: false,
	MinCells:      10,
	Columns: []ColumnMapping{
		{Cell: 3, Field: "Organization_Name"},
		{Cell: 4, Field: "Provinces"},
		{Cell: 5, Field: "Sectors"},
		{Cell: 6, Field: "Requests", YesNo: true},
		{Cell: 7, Field: "Projects", YesNo: true},
		{Cell: 8, Field: "Enabled", YesNo: true},
	},
	RecordIDCell:   -1,
	DetailLinkCell: 9,
	Sections: []SectionDescriptor{
		{Name: "General_Information", PanelIndex: 0, Kind: SectionFlat},
		{Name: "Organization_Information", PanelIndex: 1, Kind: SectionFlat},
		{Name: "Annual_Information", PanelIndex: 2, Kind: SectionFlat},
		{Name: "NAICS_Sectors", PanelIndex: 3, Kind: SectionList},
		{Name: "Contacts", PanelIndex: 4, Kind: SectionGrid},
		{Name: "Locations", PanelIndex: 5, Kind: SectionGrid},
		{Name: "Languages_Serviced", PanelIndex: 6, Kind: SectionList},
		{Name: "Web_Presence", PanelIndex: 7, Kind: SectionGrid},
		{Name: "OCIP_Activity", PanelIndex: 8, Kind: SectionGrid},
		{Name: "Audit_Trail", PanelIndex: 9, Kind: SectionFlat},
	},
}

// Descriptor returns the portal layout for a category.
func Descriptor(category models.Category) (CategoryDescriptor, error) {
	switch category {
	case models.CategoryExperts:
		return expertDescriptor, nil
	case models.CategoryFacilities:
		return facilityDescriptor, nil
	case models.CategoryOrganizations:
		return organizationDescriptor, nil
	default:
		return CategoryDescriptor{}, fmt.Errorf("unknown category %q", category)
	}
}
