package types

import "time"

// Status of a tool execution. These values are a stable contract with the
// agent runtime and must not change shape between versions.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// Metadata describes how a tool call executed, independent of its outcome.
type Metadata struct {
	ExecutionTimeMS   int64     `json:"execution_time_ms"`
	Timestamp         time.Time `json:"timestamp"`
	CollaboratorCalls int       `json:"collaborator_calls"`
	Truncated         bool      `json:"truncated"`
}

// ToolResponse is the uniform envelope every tool returns. Exactly one of
// Result and Error is meaningful: Error is set only when Status is "error",
// and Result is nil only in that case. Warnings may accompany a "success"
// (informational) or "partial" (degraded) response.
type ToolResponse struct {
	Status   string   `json:"status"`
	Result   any      `json:"result"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings"`
	Metadata Metadata `json:"metadata"`
}
