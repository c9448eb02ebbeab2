package handler

import (
	"strings"

	dErrors "cynergists/pkg/domain-errors"
	"cynergists/pkg/platform/validation"
)

// HTTP request DTOs. Converted to service arguments before processing.

type CreateTenantRequest struct {
	CompanyName string `json:"company_name"`
	Subdomain   string `json:"subdomain,omitempty"`
}

func (r *CreateTenantRequest) Normalize() {
	if r == nil {
		return
	}
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Subdomain = strings.ToLower(strings.TrimSpace(r.Subdomain))
}

func (r *CreateTenantRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.CompanyName == "" {
		return dErrors.New(dErrors.CodeValidation, "company_name is required")
	}
	if err := validation.CheckStringLength("company_name", r.CompanyName, validation.MaxCompanyNameLength); err != nil {
		return err
	}
	return validation.CheckStringLength("subdomain", r.Subdomain, validation.MaxSubdomainLength)
}

type AttachAgentRequest struct {
	Agent       string `json:"agent"`
	CompanyName string `json:"company_name"`
	Plan        string `json:"plan,omitempty"`
}

func (r *AttachAgentRequest) Normalize() {
	if r == nil {
		return
	}
	r.Agent = strings.ToLower(strings.TrimSpace(r.Agent))
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.Plan = strings.TrimSpace(r.Plan)
}

func (r *AttachAgentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.Agent == "" {
		return dErrors.New(dErrors.CodeValidation, "agent is required")
	}
	if r.CompanyName == "" {
		return dErrors.New(dErrors.CodeValidation, "company_name is required")
	}
	if err := validation.CheckStringLength("agent", r.Agent, validation.MaxAgentNameLength); err != nil {
		return err
	}
	if err := validation.CheckStringLength("company_name", r.CompanyName, validation.MaxCompanyNameLength); err != nil {
		return err
	}
	return validation.CheckStringLength("plan", r.Plan, validation.MaxPlanLength)
}
