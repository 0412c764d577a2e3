package handlers

import (
	"strconv"
	"strings"

	"github.com/intuneview/intuneview/internal/auth"
	"github.com/intuneview/intuneview/internal/controller"
	"github.com/intuneview/intuneview/internal/graph"
	"github.com/intuneview/intuneview/internal/http/authn"
	"github.com/intuneview/intuneview/internal/http/viewmodels"
	"github.com/intuneview/intuneview/internal/http/views"
	"github.com/labstack/echo/v5"
)

// tableScreen describes how one collection is listed and how each of its
// records is shown in detail.
type tableScreen struct {
	title       string
	loadingText string
	emptyText   string
	columns     []string
	newTable    func(auth.TokenProvider, controller.GraphReader, ...controller.Option) *controller.Table
	cells       func(*graph.Record) []viewmodels.TableCell
	detailTitle func(*graph.Record) string
	detail      func(*graph.Record) []viewmodels.DetailField
}

var configurationsScreen = tableScreen{
	title:       "Device Configurations",
	loadingText: "Loading device configurations...",
	emptyText:   "No device configurations found.",
	columns:     policyColumns,
	newTable:    controller.NewConfigurations,
	cells:       policyCells,
	detailTitle: displayNameTitle,
	detail:      policyDetail,
}

var complianceScreen = tableScreen{
	title:       "Device Compliance Policies",
	loadingText: "Loading compliance policies...",
	emptyText:   "No compliance policies found.",
	columns:     policyColumns,
	newTable:    controller.NewCompliancePolicies,
	cells:       policyCells,
	detailTitle: displayNameTitle,
	detail:      policyDetail,
}

var devicesScreen = tableScreen{
	title:       "Managed Devices",
	loadingText: "Loading managed devices...",
	emptyText:   "No managed devices found.",
	columns:     []string{"Device Name", "User", "OS", "Compliance", "Last Sync"},
	newTable:    controller.NewManagedDevices,
	cells:       deviceCells,
	detailTitle: func(rec *graph.Record) string { return orDefault(rec.String("deviceName"), placeholderNA) },
	detail:      deviceDetail,
}

var appsScreen = tableScreen{
	title:       "Mobile Apps",
	loadingText: "Loading mobile apps...",
	emptyText:   "No mobile apps found.",
	columns:     []string{"Display Name", "Type", "Publisher", "Last Modified"},
	newTable:    controller.NewMobileApps,
	cells:       appCells,
	detailTitle: displayNameTitle,
	detail:      appDetail,
}

var policyColumns = []string{"Display Name", "Platform", "Version", "Last Modified"}

func (h *Handlers) HandleConfigurations(c *echo.Context) error {
	return h.renderTable(c, configurationsScreen)
}

func (h *Handlers) HandleCompliancePolicies(c *echo.Context) error {
	return h.renderTable(c, complianceScreen)
}

func (h *Handlers) HandleManagedDevices(c *echo.Context) error {
	return h.renderTable(c, devicesScreen)
}

func (h *Handlers) HandleMobileApps(c *echo.Context) error {
	return h.renderTable(c, appsScreen)
}

// renderTable loads the screen's collection and renders it with a detail panel
// per record. Selecting a record only opens its panel in the browser.
func (h *Handlers) renderTable(c *echo.Context, screen tableScreen) error {
	table := screen.newTable(h.Auth, h.Graph, h.controllerOptions()...)
	state := table.Load(c.Request().Context(), authn.StateFromContext(c))

	data := viewmodels.TableViewData{
		Layout:      h.LayoutData(c, screen.title),
		Heading:     screen.title,
		State:       state.Name(),
		LoadingText: screen.loadingText,
		EmptyText:   screen.emptyText,
		Columns:     screen.columns,
	}
	switch st := state.(type) {
	case controller.Failed:
		data.ErrorMessage = st.Message
	case controller.Loaded[[]*graph.Record]:
		data.Rows = make([]viewmodels.TableRow, 0, len(st.Value))
		for i, rec := range st.Value {
			data.Rows = append(data.Rows, viewmodels.TableRow{
				ID:    rec.ID(),
				Cells: screen.cells(rec),
				Detail: viewmodels.DetailViewData{
					Anchor:  recordAnchor(i),
					Title:   screen.detailTitle(rec),
					Fields:  screen.detail(rec),
					RawJSON: rec.PrettyJSON(),
				},
			})
		}
	}

	return h.RenderComponent(c, views.TablePage(data))
}

// recordAnchor names a panel by the record's position in the collection, which
// works for records without an id too.
func recordAnchor(index int) string {
	return "record-" + strconv.Itoa(index)
}

func displayNameTitle(rec *graph.Record) string {
	return orDefault(rec.String("displayName"), placeholderNA)
}

func policyCells(rec *graph.Record) []viewmodels.TableCell {
	return []viewmodels.TableCell{
		{Text: orDefault(rec.String("displayName"), placeholderNA)},
		{Text: platformName(rec)},
		{Text: orDefault(rec.String("version"), placeholderNA)},
		{Text: formatDate(rec, "lastModifiedDateTime", placeholderNA)},
	}
}

func policyDetail(rec *graph.Record) []viewmodels.DetailField {
	return []viewmodels.DetailField{
		{Label: "ID", Value: orDefault(rec.ID(), placeholderNA)},
		{Label: "Description", Value: orDefault(rec.String("description"), placeholderNoDescription)},
		{Label: "Platform", Value: platformName(rec)},
		{Label: "Created", Value: formatDateTime(rec, "createdDateTime", placeholderNA)},
		{Label: "Last Modified", Value: formatDateTime(rec, "lastModifiedDateTime", placeholderNA)},
		{Label: "Version", Value: orDefault(rec.String("version"), placeholderNA)},
	}
}

func deviceUser(rec *graph.Record) string {
	return orDefault(firstNonEmpty(rec.String("userPrincipalName"), rec.String("emailAddress")), placeholderNA)
}

func deviceOS(rec *graph.Record) string {
	return orDefault(strings.TrimSpace(rec.String("operatingSystem")+" "+rec.String("osVersion")), placeholderNA)
}

func complianceCell(rec *graph.Record) viewmodels.TableCell {
	state := orDefault(rec.String("complianceState"), placeholderUnknown)
	return viewmodels.TableCell{Text: state, Class: "status " + strings.ToLower(state)}
}

func deviceCells(rec *graph.Record) []viewmodels.TableCell {
	return []viewmodels.TableCell{
		{Text: orDefault(rec.String("deviceName"), placeholderNA)},
		{Text: deviceUser(rec)},
		{Text: deviceOS(rec)},
		complianceCell(rec),
		{Text: formatDate(rec, "lastSyncDateTime", placeholderNever)},
	}
}

func deviceDetail(rec *graph.Record) []viewmodels.DetailField {
	return []viewmodels.DetailField{
		{Label: "ID", Value: orDefault(rec.ID(), placeholderNA)},
		{Label: "User", Value: deviceUser(rec)},
		{Label: "OS", Value: deviceOS(rec)},
		{Label: "Manufacturer", Value: orDefault(rec.String("manufacturer"), placeholderNA)},
		{Label: "Model", Value: orDefault(rec.String("model"), placeholderNA)},
		{Label: "Serial Number", Value: orDefault(rec.String("serialNumber"), placeholderNA)},
		{Label: "Enrollment Date", Value: formatDateTime(rec, "enrolledDateTime", placeholderNA)},
		{Label: "Last Sync", Value: formatDateTime(rec, "lastSyncDateTime", placeholderNever)},
		{Label: "Compliance State", Value: orDefault(rec.String("complianceState"), placeholderUnknown)},
	}
}

func appCells(rec *graph.Record) []viewmodels.TableCell {
	return []viewmodels.TableCell{
		{Text: orDefault(rec.String("displayName"), placeholderNA)},
		{Text: platformName(rec)},
		{Text: orDefault(rec.String("publisher"), placeholderNA)},
		{Text: formatDate(rec, "lastModifiedDateTime", placeholderNA)},
	}
}

func appDetail(rec *graph.Record) []viewmodels.DetailField {
	return []viewmodels.DetailField{
		{Label: "ID", Value: orDefault(rec.ID(), placeholderNA)},
		{Label: "Description", Value: orDefault(rec.String("description"), placeholderNoDescription)},
		{Label: "Type", Value: platformName(rec)},
		{Label: "Publisher", Value: orDefault(rec.String("publisher"), placeholderNA)},
		{Label: "Created", Value: formatDateTime(rec, "createdDateTime", placeholderNA)},
		{Label: "Last Modified", Value: formatDateTime(rec, "lastModifiedDateTime", placeholderNA)},
	}
}
