package controller

import (
	"context"

	"github.com/intuneview/intuneview/internal/auth"
	"github.com/intuneview/intuneview/internal/graph"
	"golang.org/x/sync/errgroup"
)

type DashboardStats struct {
	DeviceConfigurations int
	CompliancePolicies   int
	ManagedDevices       int
	MobileApps           int
}

type DashboardData struct {
	Profile *graph.Record
	Stats   DashboardStats
}

type Dashboard = Controller[DashboardData]

// NewDashboard reads the user profile, then counts four collections
// concurrently. The cycle fails as a whole if any read fails.
func NewDashboard(tokens auth.TokenProvider, reader GraphReader, opts ...Option) *Dashboard {
	fetch := func(ctx context.Context, token string) (DashboardData, error) {
		profile, err := reader.GetUserProfile(ctx, token)
		if err != nil {
			return DashboardData{}, err
		}

		var configs, policies, devices, apps []*graph.Record
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			configs, err = reader.List(gctx, token, graph.ResourceDeviceConfigurations)
			return err
		})
		g.Go(func() error {
			var err error
			policies, err = reader.List(gctx, token, graph.ResourceCompliancePolicies)
			return err
		})
		g.Go(func() error {
			var err error
			devices, err = reader.List(gctx, token, graph.ResourceManagedDevices)
			return err
		})
		g.Go(func() error {
			var err error
			apps, err = reader.List(gctx, token, graph.ResourceMobileApps)
			return err
		})
		if err := g.Wait(); err != nil {
			return DashboardData{}, err
		}

		return DashboardData{
			Profile: profile,
			Stats: DashboardStats{
				DeviceConfigurations: len(configs),
				CompliancePolicies:   len(policies),
				ManagedDevices:       len(devices),
				MobileApps:           len(apps),
			},
		}, nil
	}
	return New[DashboardData](ScreenDashboard, tokens, fetch, opts...)
}

// ResourceCount is the size of the first page of one collection.
type ResourceCount struct {
	Resource graph.Resource
	Count    int
}

type Inventory = Controller[[]ResourceCount]

// NewInventory counts every collection in graph.Collections concurrently. Counts
// are returned in graph.Collections order.
func NewInventory(tokens auth.TokenProvider, reader GraphReader, opts ...Option) *Inventory {
	fetch := func(ctx context.Context, token string) ([]ResourceCount, error) {
		counts := make([]int, len(graph.Collections))
		g, gctx := errgroup.WithContext(ctx)
		for i, resource := range graph.Collections {
			g.Go(func() error {
				records, err := reader.List(gctx, token, resource)
				if err != nil {
					return err
				}
				counts[i] = len(records)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		out := make([]ResourceCount, len(graph.Collections))
		for i, resource := range graph.Collections {
			out[i] = ResourceCount{Resource: resource, Count: counts[i]}
		}
		return out, nil
	}
	return New[[]ResourceCount](ScreenInventory, tokens, fetch, opts...)
}
