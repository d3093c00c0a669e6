package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type TaxHandler struct {
	taxService service.TaxService
	auth       *middleware.Auth
}

func NewTaxHandler(taxService service.TaxService, auth *middleware.Auth) *TaxHandler {
	return &TaxHandler{taxService: taxService, auth: auth}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	tax := router.Group("/api/tax-rates")
	tax.Use(h.auth.RequireRole(allRoles...))
	{
		tax.GET("", h.GetTaxRates)
	}
}

// GetTaxRates lists the selectable tax tiers
// @Summary      List tax rates
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/tax-rates [get]
func (h *TaxHandler) GetTaxRates(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.taxService.GetTaxRates()))
}
