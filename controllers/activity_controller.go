package controller

import (
	"encoding/json"
	"errors"
	"log"

	"leadflow/engine"
	"leadflow/models"
	"leadflow/utils"

	"github.com/gofiber/fiber/v2"
)

// ActivityController exposes the cadence engine operations: the pending
// activity queue, the audit log, execution and deferral.
type ActivityController struct {
	Engine *engine.Engine
	Cache  *utils.ActivityCache
	Logger *log.Logger
}

func NewActivityController(eng *engine.Engine, cache *utils.ActivityCache, logger *log.Logger) *ActivityController {
	return &ActivityController{
		Engine: eng,
		Cache:  cache,
		Logger: logger,
	}
}

// GetPendingActivities returns the manual execution queue for the caller's
// organization, served from the redis cache when warm.
func (ac *ActivityController) GetPendingActivities(c *fiber.Ctx) error {
	orgID := c.Locals("orgID").(uint)

	if payload, ok := ac.Cache.Get(c.Context(), orgID); ok {
		c.Set("X-Cache", "hit")
		return c.JSON(utils.SuccessResponse(json.RawMessage(payload)))
	}

	activities, err := ac.Engine.ListPendingActivities(c.Context(), orgID)
	if err != nil {
		ac.Logger.Printf("Failed to list pending activities for org %d: %v", orgID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activities", nil)
	}

	if payload, merr := json.Marshal(activities); merr == nil {
		ac.Cache.Set(c.Context(), orgID, payload)
	}

	return c.JSON(utils.SuccessResponse(activities))
}

// GetActivityLog returns the non-windowed audit listing with optional
// status/channel/search filters evaluated server-side.
func (ac *ActivityController) GetActivityLog(c *fiber.Ctx) error {
	orgID := c.Locals("orgID").(uint)

	filters := engine.ActivityLogFilters{
		Status:  c.Query("status"),
		Channel: c.Query("channel"),
		Search:  c.Query("search"),
	}

	entries, err := ac.Engine.ListActivityLog(c.Context(), orgID, filters)
	if err != nil {
		ac.Logger.Printf("Failed to list activity log for org %d: %v", orgID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch activities", nil)
	}

	return c.JSON(utils.SuccessResponse(entries))
}

// ExecuteActivity performs one pending activity. Retries and double-clicks
// surface as an already_executed no-op success rather than an error.
func (ac *ActivityController) ExecuteActivity(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input engine.ExecuteInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	input.OrganizationID = user.OrganizationID

	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	result, err := ac.Engine.Execute(c.Context(), input)
	switch {
	case err == nil:
		return c.JSON(utils.SuccessResponse(result))
	case errors.Is(err, engine.ErrAlreadyExecuted):
		return c.JSON(fiber.Map{
			"success":          true,
			"already_executed": true,
		})
	case errors.Is(err, engine.ErrCreditExhausted):
		return utils.ErrorResponse(c, fiber.StatusPaymentRequired, "WhatsApp send credits exhausted", nil)
	case errors.Is(err, engine.ErrRecordFailed):
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record interaction", nil)
	case errors.Is(err, engine.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Activity not found", nil)
	default:
		ac.Logger.Printf("Execute failed for org %d step %d: %v", user.OrganizationID, input.StepID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Internal error", nil)
	}
}

// SkipActivity defers the enrollment's due step by two hours.
func (ac *ActivityController) SkipActivity(c *fiber.Ctx) error {
	orgID := c.Locals("orgID").(uint)
	enrollmentID := utils.ParseUint(c.Params("id"))
	if enrollmentID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid enrollment id", nil)
	}

	result, err := ac.Engine.Skip(c.Context(), enrollmentID, orgID)
	switch {
	case err == nil:
		return c.JSON(utils.SuccessResponse(result))
	case errors.Is(err, engine.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Enrollment not found", nil)
	default:
		ac.Logger.Printf("Skip failed for enrollment %d: %v", enrollmentID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to skip activity", nil)
	}
}
