package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/terracastio/terracast/internal/models"
	"github.com/terracastio/terracast/internal/services"
	"github.com/terracastio/terracast/internal/utils"
)

// Forecast handles GET forecast requests
// GET /v1/datasets/:dataset/variables/:variable/forecast
func (h *Handler) Forecast(c *fiber.Ctx) error {
	dataset := c.Params("dataset")
	variable := c.Params("variable")

	horizonStr := c.Query("horizon", strconv.Itoa(utils.DefaultHorizon))
	horizon, err := strconv.Atoi(horizonStr)
	if err != nil || horizon <= 0 {
		horizon = utils.DefaultHorizon
	}
	if horizon > utils.MaxHorizon {
		return services.NewServiceError(services.CodeInvalidRequest,
			fmt.Sprintf("horizon cannot exceed %d", utils.MaxHorizon))
	}

	return h.executeForecast(c, dataset, variable, horizon,
		c.Query("family"), c.QueryBool("force_retrain"))
}

// ForecastPost handles POST forecast requests
// POST /v1/datasets/:dataset/variables/:variable/forecast
func (h *Handler) ForecastPost(c *fiber.Ctx) error {
	dataset := c.Params("dataset")
	variable := c.Params("variable")

	var body models.ForecastRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_JSON",
				Message: "Failed to parse JSON body",
				Details: map[string]interface{}{"error": err.Error()},
			},
		})
	}

	if body.Horizon <= 0 {
		body.Horizon = utils.DefaultHorizon
	}
	if err := body.Validate(); err != nil {
		return services.NewServiceError(services.CodeInvalidRequest, err.Error())
	}

	return h.executeForecast(c, dataset, variable, body.Horizon, body.Family, body.ForceRetrain)
}

// executeForecast runs the forecast through the service layer. Service
// errors propagate to the error handler middleware which maps them to
// HTTP statuses.
func (h *Handler) executeForecast(c *fiber.Ctx, dataset, variable string, horizon int, family string, forceRetrain bool) error {
	if dataset == "" || variable == "" {
		return services.NewServiceError(services.CodeInvalidRequest, "dataset and variable are required")
	}

	result, err := h.forecastService.Execute(c.Context(), &services.ForecastRequest{
		DatasetID:    dataset,
		VariableName: variable,
		Horizon:      horizon,
		Family:       family,
		ForceRetrain: forceRetrain,
	})
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// AggregateForecast handles multi-source forecast requests
// POST /v1/forecast/aggregate
func (h *Handler) AggregateForecast(c *fiber.Ctx) error {
	var body models.AggregateForecastRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_JSON",
				Message: "Failed to parse JSON body",
				Details: map[string]interface{}{"error": err.Error()},
			},
		})
	}

	if body.Horizon <= 0 {
		body.Horizon = utils.DefaultHorizon
	}
	if err := body.Validate(); err != nil {
		return services.NewServiceError(services.CodeInvalidRequest, err.Error())
	}

	specs := make([]services.SeriesSpec, len(body.Specs))
	for i, spec := range body.Specs {
		specs[i] = services.SeriesSpec{DatasetID: spec.DatasetID, VariableName: spec.VariableName}
	}
	result, err := h.aggregateService.Execute(c.Context(), &services.AggregateRequest{
		Specs:   specs,
		Horizon: body.Horizon,
		Family:  body.Family,
	})
	if err != nil {
		return err
	}

	// Partial success is still a success: per-source failures are reported
	// inside the results array.
	return c.JSON(result)
}
