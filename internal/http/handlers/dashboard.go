package handlers

import (
	"github.com/intuneview/intuneview/internal/controller"
	"github.com/intuneview/intuneview/internal/http/authn"
	"github.com/intuneview/intuneview/internal/http/viewmodels"
	"github.com/intuneview/intuneview/internal/http/views"
	"github.com/labstack/echo/v5"
)

func (h *Handlers) HandleDashboard(c *echo.Context) error {
	authState := authn.StateFromContext(c)
	dashboard := controller.NewDashboard(h.Auth, h.Graph, h.controllerOptions()...)
	state := dashboard.Load(c.Request().Context(), authState)

	data := viewmodels.DashboardViewData{
		Layout: h.LayoutData(c, "Dashboard"),
		State:  state.Name(),
	}

	switch st := state.(type) {
	case controller.Failed:
		data.ErrorMessage = st.Message
	case controller.Loaded[controller.DashboardData]:
		profile := st.Value.Profile
		account, _ := authState.Active()

		data.DisplayName = firstNonEmpty(profile.String("displayName"), account.Name, account.Username)
		data.Email = firstNonEmpty(profile.String("userPrincipalName"), profile.String("mail"), account.Username)
		data.OrgDomain = organizationDomain(data.Email)
		data.Stats = dashboardStatCards(st.Value.Stats)
	}

	return h.RenderComponent(c, views.DashboardPage(data))
}

func dashboardStatCards(stats controller.DashboardStats) []viewmodels.DashboardStatCard {
	return []viewmodels.DashboardStatCard{
		{Title: "Device Configurations", Subtitle: "Active configuration profiles", Count: stats.DeviceConfigurations, Href: "/configurations"},
		{Title: "Compliance Policies", Subtitle: "Device compliance policies", Count: stats.CompliancePolicies, Href: "/compliance"},
		{Title: "Managed Devices", Subtitle: "Devices under management", Count: stats.ManagedDevices, Href: "/devices"},
		{Title: "Mobile Apps", Subtitle: "Deployed applications", Count: stats.MobileApps, Href: "/apps"},
	}
}
