package tools

import (
	"errors"
	"time"

	"github.com/isitobservable/k8s-observer-mcp/pkg/types"
)

// Outcome is what a tool's body hands back to the envelope builder.
// Warnings are informational and leave the status at success; Degraded
// entries record sub-fetches that failed while the rest of the result was
// obtained, and force the status to partial.
type Outcome struct {
	Result            any
	Warnings          []string
	Degraded          []string
	Truncated         bool
	CollaboratorCalls int
}

// Execute runs a tool body and wraps whatever happens in the uniform
// response envelope. The wall-clock duration is measured here so
// execution_time_ms is present for every status, and failures surface as
// sanitized messages rather than raw collaborator faults.
func Execute(fn func() (*Outcome, error)) *types.ToolResponse {
	start := time.Now()
	outcome, err := fn()

	meta := types.Metadata{
		ExecutionTimeMS: time.Since(start).Milliseconds(),
		Timestamp:       time.Now().UTC(),
	}
	if outcome != nil {
		meta.CollaboratorCalls = outcome.CollaboratorCalls
		meta.Truncated = outcome.Truncated
	}

	if err != nil {
		return &types.ToolResponse{
			Status:   types.StatusError,
			Error:    errorMessage(err),
			Warnings: []string{},
			Metadata: meta,
		}
	}

	status := types.StatusSuccess
	warnings := append([]string{}, outcome.Warnings...)
	if len(outcome.Degraded) > 0 {
		status = types.StatusPartial
		warnings = append(warnings, outcome.Degraded...)
	}

	return &types.ToolResponse{
		Status:   status,
		Result:   outcome.Result,
		Warnings: warnings,
		Metadata: meta,
	}
}

// errorMessage extracts a caller-safe message from an error. Structured
// errors render their classification and message; anything else passes its
// message text through unchanged.
func errorMessage(err error) string {
	var oe *types.ObserverError
	if errors.As(err, &oe) {
		return oe.Error()
	}
	return err.Error()
}
