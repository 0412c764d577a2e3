package controller

import (
	"context"

	"github.com/intuneview/intuneview/internal/auth"
	"github.com/intuneview/intuneview/internal/graph"
)

const (
	ScreenConfigurations = "configurations"
	ScreenCompliance     = "compliance"
	ScreenDevices        = "devices"
	ScreenApps           = "apps"
	ScreenDashboard      = "dashboard"
	ScreenInventory      = "inventory"
)

// Table is a controller for a screen listing one collection, with a selected row.
// The selection always points into the collection of the current Loaded state and
// is cleared whenever a new cycle starts.
type Table struct {
	*Controller[[]*graph.Record]
	resource graph.Resource
	selected *graph.Record
}

func NewTable(screen string, resource graph.Resource, tokens auth.TokenProvider, reader GraphReader, opts ...Option) *Table {
	fetch := func(ctx context.Context, token string) ([]*graph.Record, error) {
		return reader.List(ctx, token, resource)
	}
	t := &Table{
		Controller: New[[]*graph.Record](screen, tokens, fetch, opts...),
		resource:   resource,
	}
	t.Controller.onReset = func() { t.selected = nil }
	return t
}

func NewConfigurations(tokens auth.TokenProvider, reader GraphReader, opts ...Option) *Table {
	return NewTable(ScreenConfigurations, graph.ResourceDeviceConfigurations, tokens, reader, opts...)
}

func NewCompliancePolicies(tokens auth.TokenProvider, reader GraphReader, opts ...Option) *Table {
	return NewTable(ScreenCompliance, graph.ResourceCompliancePolicies, tokens, reader, opts...)
}

func NewManagedDevices(tokens auth.TokenProvider, reader GraphReader, opts ...Option) *Table {
	return NewTable(ScreenDevices, graph.ResourceManagedDevices, tokens, reader, opts...)
}

func NewMobileApps(tokens auth.TokenProvider, reader GraphReader, opts ...Option) *Table {
	return NewTable(ScreenApps, graph.ResourceMobileApps, tokens, reader, opts...)
}

func (t *Table) Resource() graph.Resource {
	return t.resource
}

// Records returns the loaded collection, or nil outside Loaded.
func (t *Table) Records() []*graph.Record {
	records, _ := t.Value()
	return records
}

// Select selects the first loaded record with the given id. It reports false and
// leaves the selection unchanged when no such record is loaded.
func (t *Table) Select(id string) bool {
	if id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	loaded, ok := t.state.(Loaded[[]*graph.Record])
	if !ok {
		return false
	}
	for _, rec := range loaded.Value {
		if rec.ID() == id {
			t.selected = rec
			return true
		}
	}
	return false
}

// SelectIndex selects the i-th loaded record.
func (t *Table) SelectIndex(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	loaded, ok := t.state.(Loaded[[]*graph.Record])
	if !ok || i < 0 || i >= len(loaded.Value) {
		return false
	}
	t.selected = loaded.Value[i]
	return true
}

func (t *Table) ClearSelection() {
	t.mu.Lock()
	t.selected = nil
	t.mu.Unlock()
}

func (t *Table) Selected() (*graph.Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected, t.selected != nil
}
