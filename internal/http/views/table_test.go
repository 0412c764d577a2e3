package views

import (
	"strings"
	"testing"

	"github.com/intuneview/intuneview/internal/controller"
	"github.com/intuneview/intuneview/internal/http/viewmodels"
)

func TestTableLoadedRendersRowsAndStatusClass(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, TablePage(viewmodels.TableViewData{
		Layout:  viewmodels.LayoutData{Title: "Managed Devices", UserEmail: "adele@contoso.com"},
		Heading: "Managed Devices",
		State:   controller.StateLoaded,
		Columns: []string{"Device Name", "Compliance"},
		Rows: []viewmodels.TableRow{{
			ID: "d1",
			Cells: []viewmodels.TableCell{
				{Text: "Phone1"},
				{Text: "Unknown", Class: "status unknown"},
			},
			Detail: viewmodels.DetailViewData{Anchor: "record-0", Title: "Phone1"},
		}},
	}))

	assertContains(t, html, `<h1>Managed Devices</h1>`)
	assertContains(t, html, `<th>Device Name</th><th>Compliance</th><th>Actions</th>`)
	assertContains(t, html, `<tr data-id="d1"><td>Phone1</td>`)
	assertContains(t, html, `<span class="status unknown">Unknown</span>`)
	assertContains(t, html, `<td><a href="#record-0">View Details</a></td>`)
	assertContains(t, html, `<div class="modal" id="record-0" role="dialog" aria-modal="true" aria-labelledby="record-0-title">`)
	assertNotContains(t, html, `hx-get`)
}

func TestTableEmptyAndFailedStates(t *testing.T) {
	t.Parallel()

	empty := renderViewComponent(t, TableContent(viewmodels.TableViewData{
		Heading:   "Device Compliance Policies",
		State:     controller.StateLoaded,
		EmptyText: "No compliance policies found.",
	}))
	assertContains(t, empty, `No compliance policies found.`)
	assertNotContains(t, empty, `<table>`)

	failed := renderViewComponent(t, TableContent(viewmodels.TableViewData{
		Heading:      "Mobile Apps",
		State:        controller.StateFailed,
		ErrorMessage: "fetching mobile apps failed: 403 Forbidden",
		EmptyText:    "No mobile apps found.",
	}))
	assertContains(t, failed, `Error: fetching mobile apps failed: 403 Forbidden`)
	assertNotContains(t, failed, `No mobile apps found.`)

	loading := renderViewComponent(t, TableContent(viewmodels.TableViewData{
		State:       controller.StateLoading,
		LoadingText: "Loading managed devices...",
	}))
	assertContains(t, loading, `Loading managed devices...`)
}

func TestDetailPanelEscapesRawJSON(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, DetailPanel(viewmodels.DetailViewData{
		Anchor:  "record-3",
		Title:   "Baseline",
		Fields:  []viewmodels.DetailField{{Label: "Description", Value: "No description"}},
		RawJSON: `{"displayName": "<b>Baseline</b>"}`,
	}))

	assertContains(t, html, `id="record-3"`)
	assertContains(t, html, `<h2 id="record-3-title">Baseline</h2>`)
	assertContains(t, html, `<dt>Description</dt><dd>No description</dd>`)
	assertContains(t, html, `<summary>Raw JSON</summary>`)
	assertContains(t, html, `&lt;b&gt;Baseline&lt;/b&gt;`)
	assertContains(t, html, `<a class="close" href="#">Close</a>`)
	assertNotContains(t, html, `<b>Baseline</b>`)
}

func TestTableRendersOnePanelPerRow(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, TableContent(viewmodels.TableViewData{
		Heading: "Mobile Apps",
		State:   controller.StateLoaded,
		Columns: []string{"Display Name"},
		Rows: []viewmodels.TableRow{
			{ID: "a1", Cells: []viewmodels.TableCell{{Text: "Portal"}}, Detail: viewmodels.DetailViewData{Anchor: "record-0", Title: "Portal"}},
			{Cells: []viewmodels.TableCell{{Text: "Unnamed"}}, Detail: viewmodels.DetailViewData{Anchor: "record-1", Title: "Unnamed"}},
		},
	}))

	if got := strings.Count(html, `class="modal"`); got != 2 {
		t.Fatalf("rendered %d detail panels, want 2", got)
	}
	assertContains(t, html, `<a href="#record-1">View Details</a>`)
	assertContains(t, html, `<h2 id="record-1-title">Unnamed</h2>`)
}

func TestTableWithoutRowsRendersNoPanels(t *testing.T) {
	t.Parallel()

	html := renderViewComponent(t, TableContent(viewmodels.TableViewData{
		Heading:   "Mobile Apps",
		State:     controller.StateLoaded,
		EmptyText: "No mobile apps found.",
	}))
	assertNotContains(t, html, `class="modal"`)
}
