package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/terracastio/terracast/internal/models"
	"github.com/terracastio/terracast/internal/services"
	"github.com/terracastio/terracast/internal/utils"
)

// ListModels handles model listing requests
// GET /v1/models
func (h *Handler) ListModels(c *fiber.Ctx) error {
	summaries := h.forecastService.ListModels()
	return c.JSON(fiber.Map{
		"models": summaries,
		"count":  len(summaries),
	})
}

// GetModelStats handles registry statistics requests
// GET /v1/models/stats
func (h *Handler) GetModelStats(c *fiber.Ctx) error {
	return c.JSON(h.forecastService.RegistryStats())
}

// DeleteModel handles model deletion requests
// DELETE /v1/models/:dataset/:variable
func (h *Handler) DeleteModel(c *fiber.Ctx) error {
	dataset := c.Params("dataset")
	variable := c.Params("variable")
	if dataset == "" || variable == "" {
		return services.NewServiceError(services.CodeInvalidRequest, "dataset and variable are required")
	}

	if err := h.forecastService.DeleteModel(dataset, variable); err != nil {
		return err
	}

	h.logger.Info("Model deleted", "dataset_id", dataset, "variable_name", variable)

	return c.JSON(models.DeleteResponse{
		Deleted:      true,
		DatasetID:    dataset,
		VariableName: variable,
	})
}

// RetrainModel handles explicit retrain requests
// POST /v1/models/:dataset/:variable/retrain
func (h *Handler) RetrainModel(c *fiber.Ctx) error {
	dataset := c.Params("dataset")
	variable := c.Params("variable")
	if dataset == "" || variable == "" {
		return services.NewServiceError(services.CodeInvalidRequest, "dataset and variable are required")
	}

	var body models.RetrainRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    "INVALID_JSON",
					Message: "Failed to parse JSON body",
					Details: map[string]interface{}{"error": err.Error()},
				},
			})
		}
	}

	summary, err := h.forecastService.Retrain(c.Context(), dataset, variable, body.Family)
	if err != nil {
		return err
	}

	return c.JSON(summary)
}

// CleanupModels handles registry cleanup requests
// POST /admin/models/cleanup?older_than=720h
func (h *Handler) CleanupModels(c *fiber.Ctx) error {
	age := utils.DefaultCleanupAge
	if olderThan := c.Query("older_than"); olderThan != "" {
		parsed, err := time.ParseDuration(olderThan)
		if err != nil || parsed <= 0 {
			return services.NewServiceError(services.CodeInvalidRequest, "older_than must be a positive duration")
		}
		age = parsed
	}

	removed, err := h.forecastService.CleanupModels(age)
	if err != nil {
		return err
	}

	h.logger.Info("Registry cleanup complete", "older_than", age.String(), "removed", removed)

	return c.JSON(models.CleanupResponse{
		Removed:   removed,
		OlderThan: age.String(),
	})
}
