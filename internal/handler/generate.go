package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/mentorboxai/api/internal/logger"
	"github.com/mentorboxai/api/internal/model"
	"github.com/mentorboxai/api/internal/registry"
	"github.com/mentorboxai/api/internal/service"
	"github.com/mentorboxai/api/pkg/response"
)

type GenerateHandler struct {
	jobs      service.JobGenerator
	validator *validator.Validate
	async     bool
	log       logger.Logger
}

// NewGenerateHandler creates the generation handler. With async set, requests
// are queued for the worker and answered with 202 instead of running inline.
func NewGenerateHandler(jobs service.JobGenerator, v *validator.Validate, async bool, log logger.Logger) *GenerateHandler {
	return &GenerateHandler{
		jobs:      jobs,
		validator: v,
		async:     async,
		log:       log,
	}
}

// Generate handles POST /api/generate
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	req.ApplyDefaults()
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if h.async {
		result, err := h.jobs.SubmitJob(c.UserContext(), req)
		if err != nil {
			return h.serviceError(c, err)
		}
		return response.Accepted(c, result)
	}

	result, err := h.jobs.CreateJob(c.UserContext(), req)
	if err != nil {
		return h.serviceError(c, err)
	}
	return response.OK(c, result)
}

// Status handles GET /api/status/:jobId
func (h *GenerateHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.jobs.GetStatus(c.UserContext(), jobID)
	if err != nil {
		return h.serviceError(c, err)
	}

	return response.OK(c, result)
}

func (h *GenerateHandler) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return response.ValidationError(c, err.Error(), nil)
	case errors.Is(err, registry.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	}

	h.log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	return response.ServiceError(c, err.Error())
}

func formatValidationErrors(err error) interface{} {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make(map[string]string)
		for _, e := range validationErrors {
			errs[e.Field()] = e.Tag()
		}
		return errs
	}
	return nil
}
