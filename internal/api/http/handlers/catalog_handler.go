package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/assistenza/helpdesk-gateway/internal/api/dto"
	"github.com/assistenza/helpdesk-gateway/internal/directory"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

// CatalogHandler serves the cached reference data the ticket form needs.
type CatalogHandler struct {
	directory *directory.Directory
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(d *directory.Directory) *CatalogHandler {
	return &CatalogHandler{directory: d}
}

// ListCategories GET /catalog/categories.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.directory.Categories(c.UserContext())
	if err != nil {
		return err
	}
	views := make([]dto.CategoryView, 0, len(categories))
	for _, category := range categories {
		views = append(views, dto.NewCategoryView(category))
	}
	return c.JSON(fiber.Map{"data": views})
}

// ListServices GET /catalog/categories/:id/services.
func (h *CatalogHandler) ListServices(c *fiber.Ctx) error {
	categoryID := c.Params("id")
	if categoryID == "" {
		return apperrors.NewValidationError("category id is required", nil)
	}
	services, err := h.directory.ServicesByCategory(c.UserContext(), categoryID)
	if err != nil {
		return err
	}
	views := make([]dto.SupportServiceView, 0, len(services))
	for _, svc := range services {
		views = append(views, dto.NewSupportServiceView(svc))
	}
	return c.JSON(fiber.Map{"data": views})
}

// ListStaff GET /catalog/staff.
func (h *CatalogHandler) ListStaff(c *fiber.Ctx) error {
	staff, err := h.directory.Staff(c.UserContext())
	if err != nil {
		return err
	}
	views := make([]dto.AccountView, 0, len(staff))
	for _, account := range staff {
		views = append(views, dto.NewAccountView(account))
	}
	return c.JSON(fiber.Map{"data": views})
}
