package error

import "net/http"

// QuotaExceededError aborts a broadcast before any send happens.
type QuotaExceededError string

func (err QuotaExceededError) Error() string {
	return string(err)
}

func (err QuotaExceededError) ErrCode() string {
	return "QUOTA_EXCEEDED"
}

func (err QuotaExceededError) StatusCode() int {
	return http.StatusTooManyRequests
}

type CredentialsMissingError string

func (err CredentialsMissingError) Error() string {
	return string(err)
}

func (err CredentialsMissingError) ErrCode() string {
	return "CREDENTIALS_MISSING"
}

func (err CredentialsMissingError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

// ProviderSendError is recorded per recipient and never aborts a broadcast.
type ProviderSendError string

func (err ProviderSendError) Error() string {
	return string(err)
}

func (err ProviderSendError) ErrCode() string {
	return "PROVIDER_SEND_ERROR"
}

func (err ProviderSendError) StatusCode() int {
	return http.StatusBadGateway
}

// TransientNetworkError is retried inside the adapters.
type TransientNetworkError string

func (err TransientNetworkError) Error() string {
	return string(err)
}

func (err TransientNetworkError) ErrCode() string {
	return "TRANSIENT_NETWORK_ERROR"
}

func (err TransientNetworkError) StatusCode() int {
	return http.StatusServiceUnavailable
}
