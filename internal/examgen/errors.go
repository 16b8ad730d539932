package examgen

import "fmt"

// NormalizationError reports a field that could not be extracted from a
// model response.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Field, e.Reason)
}

// ConfigError reports that the upstream provider is not usable at all
// (missing credentials, unknown provider). It is returned once per batch.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("question generator not configured: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
