package viewmodels

type LayoutData struct {
	Title      string
	CSRFToken  string
	UserName   string
	UserEmail  string
	Toast      *ToastViewData
	ActivePath string
}
