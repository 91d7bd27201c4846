package portal

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/messis/internal/models"
)

// pagerInfoPattern matches the Kendo pager label, e.g. "1 - 100 of 163 items".
var pagerInfoPattern = regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s+of\s+(\d+)\s+item`)

const (
	pagerInfoSelector = "span.k-pager-info.k-label"
	nextPageSelector  = `a.k-pager-nav[aria-label="Go to the next page"]`
	listRowSelector   = "tr.k-master-row"
	panelBarSelector  = "ul.k-panelbar > li"
)

type pagerInfo struct {
	start int
	end   int
	total int
}

func parsePagerInfo(doc *goquery.Document) (pagerInfo, error) {
	text := cleanText(doc.Find(pagerInfoSelector).First().Text())
	m := pagerInfoPattern.FindStringSubmatch(text)
	if m == nil {
		return pagerInfo{}, fmt.Errorf("pager info label not found")
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	total, _ := strconv.Atoi(m[3])
	return pagerInfo{start: start, end: end, total: total}, nil
}

func parseHasNextPage(doc *goquery.Document) bool {
	btn := doc.Find(nextPageSelector).First()
	if btn.Length() == 0 {
		return false
	}
	return btn.AttrOr("aria-disabled", "") != "true"
}

// parseListPage extracts summary rows and pagination state from a rendered
// listing page. A missing pager label is tolerated; missing rows are not an
// error since a partition can legitimately be empty.
func parseListPage(doc *goquery.Document, desc CategoryDescriptor, baseURL string) (*models.ListPage, error) {
	page := &models.ListPage{
		HasNextPage: parseHasNextPage(doc),
	}
	if info, err := parsePagerInfo(doc); err == nil {
		page.TotalItems = info.total
	}

	doc.Find(listRowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < desc.MinCells {
			return
		}

		r := models.Row{Fields: make(map[string]string, len(desc.Columns))}
		for _, col := range desc.Columns {
			cell := cells.Eq(col.Cell)
			if col.YesNo {
				r.Fields[col.Field] = parseYesNo(cell)
			} else {
				r.Fields[col.Field] = cleanText(cell.Text())
			}
		}
		if desc.RecordIDCell >= 0 {
			r.RecordID = cleanText(cells.Eq(desc.RecordIDCell).Text())
		}
		r.DetailURL = parseDetailURL(row, cells, desc, baseURL)

		page.Rows = append(page.Rows, r)
	})

	return page, nil
}

func parseDetailURL(row *goquery.Selection, cells *goquery.Selection, desc CategoryDescriptor, baseURL string) string {
	if desc.DetailLinkCell >= 0 {
		if href, ok := cells.Eq(desc.DetailLinkCell).Find("a").First().Attr("href"); ok {
			return resolveURL(baseURL, href)
		}
	}
	link := row.Find(`a[title="View Full Details"]`).First()
	if link.Length() == 0 {
		link = row.Find(`a[href*="Details"]`).First()
	}
	if href, ok := link.Attr("href"); ok {
		return resolveURL(baseURL, href)
	}
	return ""
}

// parsePartitions reads the institution names out of the rendered dropdown
// listbox, skipping the placeholder entry.
func parsePartitions(doc *goquery.Document, listboxID string) []string {
	var partitions []string
	doc.Find("ul#" + listboxID + " li").Each(func(_ int, li *goquery.Selection) {
		text := cleanText(li.Text())
		if text == "" || strings.HasPrefix(text, "Select") {
			return
		}
		partitions = append(partitions, text)
	})
	return partitions
}

// parseSections runs every section descriptor against a rendered detail
// page. A failed section lands in the result map with its error set; it
// never aborts the sibling sections.
func parseSections(doc *goquery.Document, desc CategoryDescriptor) map[string]models.SectionResult {
	results := make(map[string]models.SectionResult, len(desc.Sections))
	for _, sd := range desc.Sections {
		payload, err := parseSection(doc, sd)
		results[sd.Name] = models.SectionResult{Payload: payload, Err: err}
	}
	return results
}

func parseSection(doc *goquery.Document, sd SectionDescriptor) (models.SectionPayload, error) {
	panel := findPanel(doc, sd)
	if panel.Length() == 0 {
		return nil, fmt.Errorf("panel for section %s not present", sd.Name)
	}

	switch sd.Kind {
	case SectionFlat:
		return parseKeyValues(panel), nil
	case SectionGrid:
		return parseGrid(panel), nil
	case SectionList:
		if rows := parseGrid(panel); len(rows) > 0 {
			return rows, nil
		}
		return parseTagList(panel), nil
	default:
		return nil, fmt.Errorf("unknown section kind %d", sd.Kind)
	}
}

func findPanel(doc *goquery.Document, sd SectionDescriptor) *goquery.Selection {
	if sd.PanelID != "" {
		if panel := doc.Find("li#" + sd.PanelID); panel.Length() > 0 {
			return panel
		}
	}
	return doc.Find(panelBarSelector).Eq(sd.PanelIndex)
}

// parseKeyValues extracts label/value rows from a flat panel. Keys come
// from the label's for-attribute when present, otherwise from its text.
func parseKeyValues(panel *goquery.Selection) models.FlatRecord {
	data := models.FlatRecord{}

	panel.Find("div.row").Each(func(_ int, row *goquery.Selection) {
		label := row.Find("label").First()
		if label.Length() == 0 {
			return
		}
		key := label.AttrOr("for", "")
		if key == "" {
			key = fieldKey(label.Text())
		}

		valueCol := row.Find("div.col-md-9, div.col-md-7, div.col-md-8, div.col-md-10").First()
		if valueCol.Length() == 0 {
			valueCol = row.Find(`div[class*="col-"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
				return s.Find("label").Length() == 0
			}).First()
		}
		if valueCol.Length() == 0 {
			return
		}

		if icon := valueCol.Find("span.k-icon").First(); icon.Length() > 0 {
			data[key] = parseYesNo(valueCol)
			return
		}
		if link := valueCol.Find("a").First(); link.Length() > 0 {
			href := link.AttrOr("href", "")
			switch {
			case strings.HasPrefix(href, "mailto:"):
				data["Email"] = cleanText(link.Text())
			case strings.HasPrefix(href, "tel:"):
				data["Phone"] = cleanText(link.Text())
			default:
				data[key] = cleanText(link.Text())
				data[key+"_URL"] = href
			}
			return
		}
		if rating := valueCol.Find("span.k-rating").First(); rating.Length() > 0 {
			if v := rating.AttrOr("aria-valuenow", ""); v != "" {
				data[key] = v
			} else {
				data[key] = "Not Rated"
			}
			return
		}

		data[key] = cleanText(valueCol.Text())
	})

	return data
}

// parseGrid extracts a Kendo grid table into a record list. Returns nil
// when the panel carries no grid, and an empty list when the grid shows
// its no-records template.
func parseGrid(panel *goquery.Selection) models.RecordList {
	grid := panel.Find("div.k-grid").First()
	if grid.Length() == 0 {
		return nil
	}
	if grid.Find("tr.k-no-data, div.k-grid-norecords-template").Length() > 0 {
		return models.RecordList{}
	}

	var headers []string
	grid.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		if text := cleanText(th.Text()); text != "" {
			headers = append(headers, strings.ReplaceAll(text, " ", "_"))
		}
	})

	rows := models.RecordList{}
	grid.Find("tbody tr.k-master-row").Each(func(_ int, row *goquery.Selection) {
		record := models.FlatRecord{}
		row.Find("td").Each(func(idx int, cell *goquery.Selection) {
			key := fmt.Sprintf("Column_%d", idx)
			if idx < len(headers) {
				key = headers[idx]
			}
			if link := cell.Find("a").First(); link.Length() > 0 {
				record[key] = cleanText(link.Text())
				record[key+"_URL"] = link.AttrOr("href", "")
				return
			}
			if cell.Find("span.k-icon").Length() > 0 {
				record[key] = parseYesNo(cell)
				return
			}
			record[key] = cleanText(cell.Text())
		})
		if len(record) > 0 {
			rows = append(rows, record)
		}
	})

	return rows
}

// parseTagList extracts tag, chip, or list-item style sections into
// single-value records, falling back to comma-separated panel text.
func parseTagList(panel *goquery.Selection) models.RecordList {
	rows := models.RecordList{}
	seen := make(map[string]bool)
	panel.Find("li, div.item, span.tag, div.chip, span.badge").Each(func(_ int, item *goquery.Selection) {
		text := cleanText(item.Text())
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		rows = append(rows, models.FlatRecord{"Value": text})
	})
	if len(rows) > 0 {
		return rows
	}

	content := panel.Find("div.k-content, div.panel-body").First()
	for _, part := range strings.Split(content.Text(), ",") {
		if text := cleanText(part); text != "" {
			rows = append(rows, models.FlatRecord{"Value": text})
		}
	}
	return rows
}

// parseYesNo reads a checkbox-icon cell. The icon's title wins when the
// portal sets one; otherwise the checked icon class decides.
func parseYesNo(cell *goquery.Selection) string {
	icon := cell.Find("span.k-icon").First()
	if icon.Length() == 0 {
		return cleanText(cell.Text())
	}
	if title := icon.AttrOr("title", ""); title != "" {
		return title
	}
	class := icon.AttrOr("class", "")
	if strings.Contains(class, "k-i-checkbox-checked") || strings.Contains(class, "k-i-check") {
		return "Yes"
	}
	return "No"
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func fieldKey(label string) string {
	return strings.ReplaceAll(strings.TrimSuffix(cleanText(label), ":"), " ", "_")
}

func resolveURL(baseURL, href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
