package viewmodels

type DashboardViewData struct {
	Layout       LayoutData
	State        string
	ErrorMessage string
	DisplayName  string
	Email        string
	OrgDomain    string
	Stats        []DashboardStatCard
}

type DashboardStatCard struct {
	Title    string
	Subtitle string
	Count    int
	Href     string
}
