package models

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"time"
)

func init() {
	// Section payloads are stored inside gob-encoded records (badgerhold),
	// so both concrete shapes must be registered.
	gob.Register(FlatRecord{})
	gob.Register(RecordList{})
}

// Identity is the stable key distinguishing one entity across runs. It scopes
// a natural business identifier (or, failing that, the detail URL) by the
// source partition the row was harvested from.
type Identity struct {
	Partition string `json:"partition"`
	Ref       string `json:"ref"`
}

// Key returns the flat string form used for dedup sets and storage keys.
func (id Identity) Key() string {
	return id.Partition + "|" + id.Ref
}

func (id Identity) IsZero() bool {
	return id.Ref == ""
}

// Row is one raw table row as reported by the page fetcher. Fields hold the
// visible display columns; DetailURL and RecordID are extracted separately
// because they drive identity and the detail stage.
type Row struct {
	Fields    map[string]string `json:"fields"`
	DetailURL string            `json:"detail_url"`
	RecordID  string            `json:"record_id"`
}

// ListPage is the result of fetching one page of a partition's result set.
type ListPage struct {
	Rows        []Row `json:"rows"`
	HasNextPage bool  `json:"has_next_page"`
	// TotalItems is the total row count reported by the pager, 0 if unknown.
	TotalItems int `json:"total_items"`
}

// SummaryRecord is one row harvested from a list page. Immutable once
// written; a re-run supersedes it wholesale via keyed upsert.
type SummaryRecord struct {
	Category    Category          `json:"category"`
	Partition   string            `json:"partition"`
	Fields      map[string]string `json:"fields"`
	DetailURL   string            `json:"detail_url"`
	RecordID    string            `json:"record_id"`
	Position    int               `json:"position"` // harvest order within the category
	HarvestedAt time.Time         `json:"harvested_at"`
}

// Identity returns the record's identity key: the natural business ID when
// the row carried one, the detail URL otherwise.
func (r *SummaryRecord) Identity() Identity {
	ref := r.RecordID
	if ref == "" {
		ref = r.DetailURL
	}
	return Identity{Partition: r.Partition, Ref: ref}
}

// SectionPayload is the closed sum of the two shapes a detail section can
// take: a flat field map or an ordered list of sub-records.
type SectionPayload interface {
	sectionPayload()
}

// FlatRecord is a section payload mapping field name to scalar value.
type FlatRecord map[string]string

func (FlatRecord) sectionPayload() {}

// RecordList is a section payload holding an ordered sequence of sub-records
// (contacts, locations, expertise entries and the like).
type RecordList []FlatRecord

func (RecordList) sectionPayload() {}

// SectionMap maps section name to extracted payload. JSON encoding is the
// natural one (object for FlatRecord, array for RecordList); decoding sniffs
// the leading token to pick the shape.
type SectionMap map[string]SectionPayload

func (m *SectionMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(SectionMap, len(raw))
	for name, payload := range raw {
		trimmed := bytes.TrimLeft(payload, " \t\r\n")
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var list RecordList
			if err := json.Unmarshal(payload, &list); err != nil {
				return err
			}
			out[name] = list
		} else {
			var flat FlatRecord
			if err := json.Unmarshal(payload, &flat); err != nil {
				return err
			}
			out[name] = flat
		}
	}
	*m = out
	return nil
}

// SectionResult is the fetcher's per-section extraction outcome. A section
// can fail independently of the page it belongs to.
type SectionResult struct {
	Payload SectionPayload
	Err     error
}

// RecordMeta carries the source identity fields copied from the originating
// summary record.
type RecordMeta struct {
	Category  Category  `json:"category"`
	Partition string    `json:"partition"`
	RecordID  string    `json:"record_id"`
	Name      string    `json:"name"`
	SourceURL string    `json:"source_url"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// DetailRecord is the full profile for one entity: source meta plus the
// per-section payloads that extracted successfully. Replaced wholesale on an
// explicit re-scrape, never merged field-by-field.
type DetailRecord struct {
	Meta     RecordMeta `json:"meta"`
	Sections SectionMap `json:"sections"`
	// PartialSections lists sections that failed extraction; the record is
	// still valid with the sections that succeeded.
	PartialSections []string `json:"partial_sections,omitempty"`
}

// Identity returns the same key as the originating summary record.
func (r *DetailRecord) Identity() Identity {
	ref := r.Meta.RecordID
	if ref == "" {
		ref = r.Meta.SourceURL
	}
	return Identity{Partition: r.Meta.Partition, Ref: ref}
}
