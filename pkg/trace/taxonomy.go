// Package trace records agent executions as append-only traces and
// classifies their failures against a fixed taxonomy.
package trace

import "github.com/praetorworks/praetor/pkg/models"

// TerminationReason is the outcome of one reasoning-loop run.
type TerminationReason string

const (
	ReasonCompleted        TerminationReason = "completed"
	ReasonMaxIterations    TerminationReason = "max_iterations"
	ReasonError            TerminationReason = "error"
	ReasonGovernanceDenied TerminationReason = "tool_governance_denied"
	ReasonBudgetExceeded   TerminationReason = "budget_exceeded"
	ReasonContextExhausted TerminationReason = "context_exhausted"
	ReasonLeakageDetected  TerminationReason = "leakage_detected"
	ReasonTimeout          TerminationReason = "timeout"
)

// Tool-loop subcodes. Every termination reason other than completed maps to
// one; unrecognized reasons map to SubcodeLoopUnknown.
const (
	SubcodeLoopMaxIterations    = "F-EXE-TL01"
	SubcodeLoopConsecutiveErrs  = "F-EXE-TL02"
	SubcodeLoopModelError       = "F-EXE-TL03"
	SubcodeLoopGovernanceDenied = "F-EXE-TL04"
	SubcodeLoopBudgetExceeded   = "F-EXE-TL05"
	SubcodeLoopContextExhausted = "F-EXE-TL06"
	SubcodeLoopLeakageDetected  = "F-EXE-TL07"
	SubcodeLoopTimeout          = "F-EXE-TL08"
	SubcodeLoopUnknown          = "F-UNK-TL00"
)

// Subcodes recorded by components outside the loop.
const (
	SubcodeSchemaValidation = "F-VAL-SC01"
	SubcodeWorkflowInput    = "F-VAL-WF01"
	SubcodeGovernanceDenial = "F-SEC-GV01"
	SubcodeRateLimited      = "F-SEC-GV02"
	SubcodeSSRFBlocked      = "F-SEC-NET01"
	SubcodeBudgetViolation  = "F-RES-BU01"
	SubcodeStepFailed       = "F-EXE-WF01"
	SubcodeCommandFailed    = "F-EXE-CMD01"
	SubcodeExecutorFailed   = "F-EXE-CODE01"
	SubcodeUnknownAgent     = "F-DEP-AG01"
	SubcodeUnknownTool      = "F-DEP-TO01"
	SubcodeProviderDown     = "F-DEP-MD01"
	SubcodeUnhandled        = "F-UNK-XX01"
)

// Classification fixes the taxonomy attributes of one subcode.
type Classification struct {
	Subcode            string
	Category           models.FailureCategory
	Severity           models.FailureSeverity
	Retryable          bool
	EscalationRequired bool
	Description        string
}

var catalog = map[string]Classification{
	SubcodeLoopMaxIterations:    {SubcodeLoopMaxIterations, models.FailureExecution, models.SeverityMedium, true, false, "iteration cap reached before a final answer"},
	SubcodeLoopConsecutiveErrs:  {SubcodeLoopConsecutiveErrs, models.FailureExecution, models.SeverityMedium, true, false, "consecutive tool errors above threshold"},
	SubcodeLoopModelError:       {SubcodeLoopModelError, models.FailureExecution, models.SeverityMedium, true, false, "model completion call failed"},
	SubcodeLoopGovernanceDenied: {SubcodeLoopGovernanceDenied, models.FailureExecution, models.SeverityHigh, false, true, "tool call denied by governance"},
	SubcodeLoopBudgetExceeded:   {SubcodeLoopBudgetExceeded, models.FailureExecution, models.SeverityHigh, false, true, "autonomy budget exhausted or run cancelled"},
	SubcodeLoopContextExhausted: {SubcodeLoopContextExhausted, models.FailureExecution, models.SeverityMedium, false, false, "context window exhausted"},
	SubcodeLoopLeakageDetected:  {SubcodeLoopLeakageDetected, models.FailureExecution, models.SeverityCritical, false, true, "leakage marker found in tool output"},
	SubcodeLoopTimeout:          {SubcodeLoopTimeout, models.FailureExecution, models.SeverityMedium, true, false, "loop wall-clock deadline exceeded"},
	SubcodeLoopUnknown:          {SubcodeLoopUnknown, models.FailureUnknown, models.SeverityMedium, false, false, "unrecognized loop termination"},

	SubcodeSchemaValidation: {SubcodeSchemaValidation, models.FailureValidation, models.SeverityLow, true, false, "tool arguments failed schema validation"},
	SubcodeWorkflowInput:    {SubcodeWorkflowInput, models.FailureValidation, models.SeverityMedium, false, false, "workflow input failed validation"},
	SubcodeGovernanceDenial: {SubcodeGovernanceDenial, models.FailureSecurity, models.SeverityHigh, false, true, "governance denied an operation"},
	SubcodeRateLimited:      {SubcodeRateLimited, models.FailureSecurity, models.SeverityLow, true, false, "per-subject rate limit breached"},
	SubcodeSSRFBlocked:      {SubcodeSSRFBlocked, models.FailureSecurity, models.SeverityHigh, false, true, "request to private address space blocked"},
	SubcodeBudgetViolation:  {SubcodeBudgetViolation, models.FailureResource, models.SeverityHigh, false, true, "resource limit on an active budget breached"},
	SubcodeStepFailed:       {SubcodeStepFailed, models.FailureExecution, models.SeverityMedium, true, false, "workflow step failed after retries"},
	SubcodeCommandFailed:    {SubcodeCommandFailed, models.FailureExecution, models.SeverityMedium, true, false, "command exited nonzero"},
	SubcodeExecutorFailed:   {SubcodeExecutorFailed, models.FailureExecution, models.SeverityMedium, true, false, "code executor reported failure"},
	SubcodeUnknownAgent:     {SubcodeUnknownAgent, models.FailureDependency, models.SeverityMedium, false, false, "agent definition not found"},
	SubcodeUnknownTool:      {SubcodeUnknownTool, models.FailureDependency, models.SeverityMedium, false, false, "tool implementation not found"},
	SubcodeProviderDown:     {SubcodeProviderDown, models.FailureDependency, models.SeverityHigh, true, false, "model provider unavailable"},
	SubcodeUnhandled:        {SubcodeUnhandled, models.FailureUnknown, models.SeverityMedium, false, false, "unhandled internal error"},
}

// Classify returns the taxonomy attributes for a subcode. Unknown subcodes
// fall back to the unknown/medium classification.
func Classify(subcode string) Classification {
	if c, ok := catalog[subcode]; ok {
		return c
	}
	c := catalog[SubcodeUnhandled]
	c.Subcode = subcode
	return c
}

// ReasonSubcode maps a loop termination reason to its taxonomy subcode.
// ReasonCompleted maps to "" (not a failure). ReasonError covers both
// consecutive tool errors and model-call errors; the loop distinguishes them
// by passing modelErr.
func ReasonSubcode(reason TerminationReason, modelErr bool) string {
	switch reason {
	case ReasonCompleted:
		return ""
	case ReasonMaxIterations:
		return SubcodeLoopMaxIterations
	case ReasonError:
		if modelErr {
			return SubcodeLoopModelError
		}
		return SubcodeLoopConsecutiveErrs
	case ReasonGovernanceDenied:
		return SubcodeLoopGovernanceDenied
	case ReasonBudgetExceeded:
		return SubcodeLoopBudgetExceeded
	case ReasonContextExhausted:
		return SubcodeLoopContextExhausted
	case ReasonLeakageDetected:
		return SubcodeLoopLeakageDetected
	case ReasonTimeout:
		return SubcodeLoopTimeout
	default:
		return SubcodeLoopUnknown
	}
}

// ReasonTraceStatus maps a termination reason to the trace status recorded
// at completion. Iteration exhaustion and deadline expiry are timeouts, not
// failures.
func ReasonTraceStatus(reason TerminationReason) models.TraceStatus {
	switch reason {
	case ReasonCompleted, ReasonLeakageDetected:
		// Leakage surfaces as an annotated success, not an error.
		return models.TraceCompleted
	case ReasonMaxIterations, ReasonTimeout:
		return models.TraceTimeout
	default:
		return models.TraceFailed
	}
}

// IsFailure reports whether a termination reason produces a failure record.
func IsFailure(reason TerminationReason) bool {
	switch reason {
	case ReasonCompleted, ReasonMaxIterations:
		return false
	}
	return true
}
