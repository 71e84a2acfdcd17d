package models

// CapabilityCategory groups capabilities in the fixed taxonomy.
type CapabilityCategory string

const (
	CapabilityPlanning       CapabilityCategory = "planning"
	CapabilityImplementation CapabilityCategory = "implementation"
	CapabilityVerification   CapabilityCategory = "verification"
	CapabilityReview         CapabilityCategory = "review"
	CapabilityResearch       CapabilityCategory = "research"
)

// CapabilityDefinition is one entry of the immutable capability catalog.
// IDs follow the {category-letter}-NN convention, e.g. "P-01".
type CapabilityDefinition struct {
	ID          string             `json:"id"`
	Category    CapabilityCategory `json:"category"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
}
