package agents

import "fmt"

// ConfigurationError is returned when no API credential is configured.
// No request is sent in that case.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// AnalysisError is returned when the AI call fails or its answer is empty,
// unparseable, or does not match the expected shape.
type AnalysisError struct {
	Reason string
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return "analysis failed: " + e.Reason
	}
	return fmt.Sprintf("analysis failed: %s: %v", e.Reason, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
