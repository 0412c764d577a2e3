package viewmodels

// TableViewData backs every collection screen. State is one of the controller
// state names; only the fields relevant to that state are populated.
type TableViewData struct {
	Layout       LayoutData
	Heading      string
	State        string
	ErrorMessage string
	LoadingText  string
	EmptyText    string
	Columns      []string
	Rows         []TableRow
}

// TableRow is one record of the loaded collection together with its detail
// panel. The panel is part of the page, so opening it needs no request.
type TableRow struct {
	ID     string
	Cells  []TableCell
	Detail DetailViewData
}

type TableCell struct {
	Text  string
	Class string
}

// DetailViewData is a record's detail panel. Anchor is the panel's element id;
// linking to it opens the panel.
type DetailViewData struct {
	Anchor  string
	Title   string
	Fields  []DetailField
	RawJSON string
}

type DetailField struct {
	Label string
	Value string
}
