package http

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

// toHumaError translates domain errors to Huma HTTP errors. Fatal step
// failures are unwrapped so the cause decides the status.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrTenantNotFound) {
		return huma.Error404NotFound("tenant not found")
	}

	if errors.Is(err, domain.ErrRecoveryUnavailable) {
		return huma.Error410Gone(err.Error())
	}

	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) {
		return huma.Error409Conflict(conflictErr.Error())
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error422UnprocessableEntity(valErr.Error(), &huma.ErrorDetail{
			Location: "body." + valErr.Field,
			Message:  valErr.Reason,
		})
	}

	var planErr *domain.UnknownPlanError
	if errors.As(err, &planErr) {
		return huma.Error422UnprocessableEntity(planErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var stepErr *domain.StepError
	if errors.As(err, &stepErr) {
		return huma.Error500InternalServerError("provisioning failed at step " + stepErr.Step)
	}

	return huma.Error500InternalServerError("internal server error")
}
