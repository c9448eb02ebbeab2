package validation

import (
	"fmt"

	dErrors "cynergists/pkg/domain-errors"
)

// HTTP body limits
const (
	// MaxBodySize is the maximum allowed request body size (64 KB).
	// Sufficient for JSON APIs while preventing memory exhaustion attacks.
	MaxBodySize = 64 * 1024
)

// String element length limits
const (
	// MaxMessageLength is the maximum length of a single chat message.
	MaxMessageLength = 32_000

	// MaxCompanyNameLength is the maximum length of a tenant's company name.
	MaxCompanyNameLength = 200

	// MaxSubdomainLength is the maximum length of a tenant subdomain.
	MaxSubdomainLength = 63

	// MaxAgentNameLength is the maximum length of an agent name or alias.
	MaxAgentNameLength = 50

	// MaxPlanLength is the maximum length of a subscription plan name.
	MaxPlanLength = 50
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
