package utils

// ResponseData is the envelope every REST handler answers with.
type ResponseData struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded is used in handlers where the recovery middleware turns a
// typed error into the proper status code.
func PanicIfNeeded(err any) {
	if err != nil {
		panic(err)
	}
}
