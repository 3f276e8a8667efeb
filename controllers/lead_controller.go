package controller

import (
	"log"
	"strconv"

	"leadflow/models"
	"leadflow/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
	}
}

// GetLeads returns paginated leads with an optional free-text search over
// name, email and tax id.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	orgID := c.Locals("orgID").(uint)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}

	query := lc.DB.Where("organization_id = ?", orgID)
	if search := c.Query("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where(
			"fantasy_name ILIKE ? OR legal_name ILIKE ? OR email ILIKE ? OR tax_id LIKE ?",
			like, like, like, like,
		)
	}

	var total int64
	if err := query.Model(&models.Lead{}).Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	var leads []models.Lead
	if err := query.
		Preload("Contacts").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  leads,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetLead returns one lead with contacts, enrollments, and the interaction
// history used by the lead timeline.
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	orgID := c.Locals("orgID").(uint)

	var lead models.Lead
	if err := lc.DB.
		Preload("Contacts").
		Preload("Enrollments").
		Preload("Interactions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Where("id = ? AND organization_id = ?", c.Params("id"), orgID).
		First(&lead).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	return c.JSON(utils.SuccessResponse(lead))
}
