package portal

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/messis/internal/models"
)

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestParsePagerInfo(t *testing.T) {
	d := doc(t, `<div><span class="k-pager-info k-label"> 1 - 100 of 163 items </span></div>`)

	info, err := parsePagerInfo(d)
	require.NoError(t, err)
	assert.Equal(t, 1, info.start)
	assert.Equal(t, 100, info.end)
	assert.Equal(t, 163, info.total)
}

func TestParsePagerInfo_SingleItem(t *testing.T) {
	d := doc(t, `<span class="k-pager-info k-label">1 - 1 of 1 item</span>`)

	info, err := parsePagerInfo(d)
	require.NoError(t, err)
	assert.Equal(t, 1, info.total)
}

func TestParsePagerInfo_MissingLabel(t *testing.T) {
	d := doc(t, `<div><span class="k-label">No items to display</span></div>`)

	_, err := parsePagerInfo(d)
	assert.Error(t, err)
}

func TestParseHasNextPage(t *testing.T) {
	enabled := doc(t, `<a class="k-pager-nav" aria-label="Go to the next page" aria-disabled="false"></a>`)
	assert.True(t, parseHasNextPage(enabled))

	disabled := doc(t, `<a class="k-pager-nav" aria-label="Go to the next page" aria-disabled="true"></a>`)
	assert.False(t, parseHasNextPage(disabled))

	missing := doc(t, `<div></div>`)
	assert.False(t, parseHasNextPage(missing))
}

func expertRow(id, facility, expType, position, name string) string {
	return `<tr class="k-master-row">
		<td></td><td>` + id + `</td><td></td><td></td><td>` + facility + `</td>
		<td></td><td>` + expType + `</td><td>` + position + `</td>
		<td><a title="View Full Details" href="/ExpertAdmin/Details/` + id + `">` + name + `</a></td>
	</tr>`
}

func TestParseListPage_Experts(t *testing.T) {
	d := doc(t, `<html><body>
		<span class="k-pager-info k-label">1 - 2 of 2 items</span>
		<a class="k-pager-nav" aria-label="Go to the next page" aria-disabled="true"></a>
		<table><tbody>`+
		expertRow("E0001", "Lakehead", "Faculty", "Professor", "Ada Lovelace")+
		expertRow("E0002", "Lakehead", "Staff", "Technician", "Grace Hopper")+
		`</tbody></table></body></html>`)

	page, err := parseListPage(d, expertDescriptor, "https://www.ocip.express")
	require.NoError(t, err)

	require.Len(t, page.Rows, 2)
	assert.False(t, page.HasNextPage)
	assert.Equal(t, 2, page.TotalItems)

	first := page.Rows[0]
	assert.Equal(t, "E0001", first.RecordID)
	assert.Equal(t, "E0001", first.Fields["Expert_ID"])
	assert.Equal(t, "Lakehead", first.Fields["Facility"])
	assert.Equal(t, "Faculty", first.Fields["Expert_Type"])
	assert.Equal(t, "Professor", first.Fields["Position"])
	assert.Equal(t, "Ada Lovelace", first.Fields["Name"])
	assert.Equal(t, "https://www.ocip.express/ExpertAdmin/Details/E0001", first.DetailURL)
}

func TestParseListPage_Organizations(t *testing.T) {
	d := doc(t, `<table><tbody><tr class="k-master-row">
		<td></td><td></td><td></td>
		<td>Acme Research Ltd</td>
		<td>Ontario, Quebec</td>
		<td>Manufacturing</td>
		<td><span class="k-icon k-i-checkbox-checked"></span></td>
		<td><span class="k-icon k-i-checkbox"></span></td>
		<td><span class="k-icon" title="Yes"></span></td>
		<td><a href="/BusinessAdmin/Details/42">View</a></td>
	</tr></tbody></table>`)

	page, err := parseListPage(d, organizationDescriptor, "https://www.ocip.express")
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)

	row := page.Rows[0]
	assert.Equal(t, "Acme Research Ltd", row.Fields["Organization_Name"])
	assert.Equal(t, "Ontario, Quebec", row.Fields["Provinces"])
	assert.Equal(t, "Yes", row.Fields["Requests"])
	assert.Equal(t, "No", row.Fields["Projects"])
	assert.Equal(t, "Yes", row.Fields["Enabled"])
	assert.Empty(t, row.RecordID, "organization listings carry no natural identifier")
	assert.Equal(t, "https://www.ocip.express/BusinessAdmin/Details/42", row.DetailURL)
}

func TestParseListPage_SkipsShortRows(t *testing.T) {
	// Nested detail tables also render k-master-row but with fewer cells.
	d := doc(t, `<table><tbody>
		<tr class="k-master-row"><td>stub</td><td>E9999</td></tr>`+
		expertRow("E0001", "Lakehead", "Faculty", "Professor", "Ada Lovelace")+
		`</tbody></table>`)

	page, err := parseListPage(d, expertDescriptor, "https://www.ocip.express")
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "E0001", page.Rows[0].RecordID)
}

func TestParseListPage_EmptyListing(t *testing.T) {
	d := doc(t, `<div><span class="k-pager-info k-label">No items to display</span></div>`)

	page, err := parseListPage(d, expertDescriptor, "https://www.ocip.express")
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.False(t, page.HasNextPage)
	assert.Zero(t, page.TotalItems)
}

func TestParsePartitions(t *testing.T) {
	d := doc(t, `<ul id="HeiId_listbox">
		<li>Select an Institution...</li>
		<li> Lakehead University </li>
		<li>Nipissing University</li>
		<li></li>
	</ul>`)

	partitions := parsePartitions(d, "HeiId_listbox")
	assert.Equal(t, []string{"Lakehead University", "Nipissing University"}, partitions)
}

func TestParseSections_MissingPanelIsIsolated(t *testing.T) {
	// Only the first panel exists; every other section fails on its own.
	d := doc(t, `<ul class="k-panelbar">
		<li id="ProfileBar-1"><div class="row">
			<label for="First_Name">First Name</label>
			<div class="col-md-9">Ada</div>
		</div></li>
	</ul>`)

	results := parseSections(d, expertDescriptor)
	require.Len(t, results, len(expertDescriptor.Sections))

	general := results["General_Information"]
	require.NoError(t, general.Err)
	flat, ok := general.Payload.(models.FlatRecord)
	require.True(t, ok)
	assert.Equal(t, "Ada", flat["First_Name"])

	audit := results["Audit_Trail"]
	require.Error(t, audit.Err)
	assert.Contains(t, audit.Err.Error(), "Audit_Trail")
}

func TestFindPanel_FallsBackToOrdinal(t *testing.T) {
	d := doc(t, `<ul class="k-panelbar">
		<li><span>first</span></li>
		<li><span>second</span></li>
	</ul>`)

	panel := findPanel(d, SectionDescriptor{Name: "Second", PanelID: "NoSuchId", PanelIndex: 1})
	require.Equal(t, 1, panel.Length())
	assert.Equal(t, "second", cleanText(panel.Text()))
}

func TestParseKeyValues(t *testing.T) {
	d := doc(t, `<li>
		<div class="row">
			<label for="Facility_Name">Facility Name</label>
			<div class="col-md-9"> Lakehead  University </div>
		</div>
		<div class="row">
			<label>Primary Contact:</label>
			<div class="col-md-7">Jordan Reyes</div>
		</div>
		<div class="row">
			<label for="Email_Address">Email Address</label>
			<div class="col-md-9"><a href="mailto:jordan@example.org">jordan@example.org</a></div>
		</div>
		<div class="row">
			<label for="Phone_Number">Phone Number</label>
			<div class="col-md-9"><a href="tel:+18075551234">807-555-1234</a></div>
		</div>
		<div class="row">
			<label for="Website">Website</label>
			<div class="col-md-9"><a href="https://example.org">example.org</a></div>
		</div>
		<div class="row">
			<label for="Enabled">Enabled</label>
			<div class="col-md-9"><span class="k-icon k-i-checkbox-checked"></span></div>
		</div>
		<div class="row">
			<label for="Rating">Rating</label>
			<div class="col-md-9"><span class="k-rating" aria-valuenow="4"></span></div>
		</div>
		<div class="row">
			<div class="col-md-12">no label, skipped</div>
		</div>
	</li>`)

	data := parseKeyValues(d.Find("li"))

	assert.Equal(t, "Lakehead University", data["Facility_Name"])
	assert.Equal(t, "Jordan Reyes", data["Primary_Contact"], "label text becomes the key when for is absent")
	assert.Equal(t, "jordan@example.org", data["Email"])
	assert.Equal(t, "807-555-1234", data["Phone"])
	assert.Equal(t, "example.org", data["Website"])
	assert.Equal(t, "https://example.org", data["Website_URL"])
	assert.Equal(t, "Yes", data["Enabled"])
	assert.Equal(t, "4", data["Rating"])
	assert.NotContains(t, data, "no_label")
}

func TestParseGrid(t *testing.T) {
	d := doc(t, `<li><div class="k-grid">
		<table>
			<thead><tr><th>Contact Name</th><th>Role</th><th>Profile</th></tr></thead>
			<tbody>
				<tr class="k-master-row">
					<td>Ada Lovelace</td>
					<td>Lead</td>
					<td><a href="/profile/1">view</a></td>
				</tr>
				<tr class="k-master-row">
					<td>Grace Hopper</td>
					<td><span class="k-icon" title="No"></span></td>
					<td></td>
				</tr>
			</tbody>
		</table>
	</div></li>`)

	rows := parseGrid(d.Find("li"))
	require.Len(t, rows, 2)

	assert.Equal(t, "Ada Lovelace", rows[0]["Contact_Name"])
	assert.Equal(t, "Lead", rows[0]["Role"])
	assert.Equal(t, "view", rows[0]["Profile"])
	assert.Equal(t, "/profile/1", rows[0]["Profile_URL"])
	assert.Equal(t, "No", rows[1]["Role"])
}

func TestParseGrid_NoRecordsTemplate(t *testing.T) {
	d := doc(t, `<li><div class="k-grid"><table><tbody>
		<tr class="k-no-data"><td>No records available.</td></tr>
	</tbody></table></div></li>`)

	rows := parseGrid(d.Find("li"))
	require.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestParseGrid_NoGridPresent(t *testing.T) {
	d := doc(t, `<li><p>plain panel</p></li>`)
	assert.Nil(t, parseGrid(d.Find("li")))
}

func TestParseTagList(t *testing.T) {
	d := doc(t, `<li><ul>
		<li>Ontario</li>
		<li>Quebec</li>
		<li>Ontario</li>
	</ul></li>`)

	rows := parseTagList(d.Find("li").First())
	require.Len(t, rows, 2, "duplicates collapse")
	assert.Equal(t, "Ontario", rows[0]["Value"])
	assert.Equal(t, "Quebec", rows[1]["Value"])
}

func TestParseTagList_CommaFallback(t *testing.T) {
	d := doc(t, `<li><div class="k-content">English, French , </div></li>`)

	rows := parseTagList(d.Find("li"))
	require.Len(t, rows, 2)
	assert.Equal(t, "English", rows[0]["Value"])
	assert.Equal(t, "French", rows[1]["Value"])
}

func TestParseYesNo(t *testing.T) {
	titled := doc(t, `<table><tr><td><span class="k-icon k-i-checkbox" title="Yes"></span></td></tr></table>`)
	assert.Equal(t, "Yes", parseYesNo(titled.Find("td")), "title wins over class")

	checked := doc(t, `<table><tr><td><span class="k-icon k-i-checkbox-checked"></span></td></tr></table>`)
	assert.Equal(t, "Yes", parseYesNo(checked.Find("td")))

	unchecked := doc(t, `<table><tr><td><span class="k-icon k-i-checkbox"></span></td></tr></table>`)
	assert.Equal(t, "No", parseYesNo(unchecked.Find("td")))

	noIcon := doc(t, `<table><tr><td> plain  text </td></tr></table>`)
	assert.Equal(t, "plain text", parseYesNo(noIcon.Find("td")))
}

func TestFieldKey(t *testing.T) {
	assert.Equal(t, "Facility_Name", fieldKey(" Facility  Name: "))
	assert.Equal(t, "Email", fieldKey("Email"))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://www.ocip.express/ExpertAdmin/Details/5",
		resolveURL("https://www.ocip.express", "/ExpertAdmin/Details/5"))
	assert.Equal(t, "https://other.example/x",
		resolveURL("https://www.ocip.express", "https://other.example/x"))
	assert.Empty(t, resolveURL("https://www.ocip.express", ""))
}
