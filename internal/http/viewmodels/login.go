package viewmodels

type LoginViewData struct {
	CSRFToken    string
	Next         string
	ErrorMessage string
	Toast        *ToastViewData
}
