package error

import "net/http"

type ValidationError string

func (err ValidationError) Error() string {
	return string(err)
}

func (err ValidationError) ErrCode() string {
	return "VALIDATION_ERROR"
}

func (err ValidationError) StatusCode() int {
	return http.StatusBadRequest
}

const (
	ErrNoValidRecipients   = ValidationError("no valid recipients: every number was empty or shorter than 10 digits")
	ErrNoSelectionCriteria = ValidationError("no selection criteria: provide numbers or lead statuses")
)

type UnsupportedOperationError string

func (err UnsupportedOperationError) Error() string {
	return string(err)
}

func (err UnsupportedOperationError) ErrCode() string {
	return "UNSUPPORTED_OPERATION"
}

func (err UnsupportedOperationError) StatusCode() int {
	return http.StatusBadRequest
}
