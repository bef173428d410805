package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cardgame-backend/internal/catalog"
)

// ProductHandler lists the catalog.
type ProductHandler struct {
	Catalog *catalog.Catalog
}

func NewProductHandler(cat *catalog.Catalog) *ProductHandler {
	return &ProductHandler{Catalog: cat}
}

// List returns every product in catalog order.
func (h *ProductHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"products": h.Catalog.Products(),
	})
}
