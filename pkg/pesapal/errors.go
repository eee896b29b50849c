package pesapal

import "fmt"

// CredentialsError means the gateway cannot be used with the configured secrets.
type CredentialsError struct {
	Field  string // missing setting, empty when the provider rejected the pair
	Detail string
}

func (e *CredentialsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("pesapal credentials: %s is not set", e.Field)
	}
	return "pesapal credentials rejected: " + e.Detail
}

// GatewayError carries the provider's raw response text for logging.
type GatewayError struct {
	Op         string
	StatusCode int
	Raw        string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pesapal %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("pesapal %s: status %d: %s", e.Op, e.StatusCode, e.Raw)
}

func (e *GatewayError) Unwrap() error { return e.Err }
