package controller

import (
	"log"
	"strconv"

	"leadflow/models"
	"leadflow/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CadenceController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCadenceController(db *gorm.DB, logger *log.Logger) *CadenceController {
	return &CadenceController{
		DB:     db,
		Logger: logger,
	}
}

// GetCadences returns the organization's cadences with their steps.
func (cc *CadenceController) GetCadences(c *fiber.Ctx) error {
	orgID := c.Locals("orgID").(uint)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}

	query := cc.DB.Where("organization_id = ?", orgID)
	if cadenceType := c.Query("type"); cadenceType != "" {
		query = query.Where("type = ?", cadenceType)
	}

	var total int64
	if err := query.Model(&models.Cadence{}).Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch cadences", err)
	}

	var cadences []models.Cadence
	if err := query.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&cadences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch cadences", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  cadences,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetCadence returns one cadence with steps and enrollment counts.
func (cc *CadenceController) GetCadence(c *fiber.Ctx) error {
	orgID := c.Locals("orgID").(uint)

	var cadence models.Cadence
	if err := cc.DB.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_order ASC") }).
		Where("id = ? AND organization_id = ?", c.Params("id"), orgID).
		First(&cadence).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Cadence not found", nil)
	}

	var activeCount, completedCount int64
	cc.DB.Model(&models.Enrollment{}).
		Where("cadence_id = ? AND status = ?", cadence.ID, models.EnrollmentStatusActive).
		Count(&activeCount)
	cc.DB.Model(&models.Enrollment{}).
		Where("cadence_id = ? AND status = ?", cadence.ID, models.EnrollmentStatusCompleted).
		Count(&completedCount)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"cadence":               cadence,
		"active_enrollments":    activeCount,
		"completed_enrollments": completedCount,
	}))
}
