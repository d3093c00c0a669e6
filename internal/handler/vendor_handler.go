package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

type VendorHandler struct {
	vendorService service.VendorService
	auth          *middleware.Auth
}

func NewVendorHandler(vendorService service.VendorService, auth *middleware.Auth) *VendorHandler {
	return &VendorHandler{vendorService: vendorService, auth: auth}
}

func (h *VendorHandler) RegisterRoutes(router *gin.RouterGroup) {
	vendors := router.Group("/api/vendors")
	{
		vendors.GET("", h.auth.RequireRole(buyerRoles...), h.ListVendors)
		vendors.GET("/:id", h.auth.RequireRole(allRoles...), h.GetVendor)
		vendors.POST("", h.auth.RequireRole(buyerRoles...), h.CreateVendor)
		vendors.PUT("/:id", h.auth.RequireRole(buyerRoles...), h.UpdateVendor)
		vendors.DELETE("/:id", h.auth.RequireRole(buyerRoles...), h.DeleteVendor)
	}
}

// ListVendors returns paginated vendors with optional search
// @Summary      List vendors
// @Tags         vendors
// @Security     BearerAuth
// @Produce      json
// @Param        page         query     int     false  "Page number (default: 1)"
// @Param        limit        query     int     false  "Items per page (default: 20)"
// @Param        search       query     string  false  "Search by name, company, tax code, email"
// @Param        active_only  query     bool    false  "Only active vendors"
// @Success      200          {object}  response.Response
// @Router       /api/vendors [get]
func (h *VendorHandler) ListVendors(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.VendorListFilter{
		Search:     c.Query("search"),
		ActiveOnly: cast.ToBool(c.Query("active_only")),
		Page:       p.Page,
		Limit:      p.Limit,
	}

	vendors, total, err := h.vendorService.GetVendors(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, vendors, p.Page, p.Limit, total))
}

// GetVendor returns one vendor with its addresses
// @Summary      Get vendor
// @Tags         vendors
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/vendors/{id} [get]
func (h *VendorHandler) GetVendor(c *gin.Context) {
	vendor, err := h.vendorService.GetVendor(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, vendor))
}

// CreateVendor registers a new vendor company
// @Summary      Create vendor
// @Tags         vendors
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateVendorRequest  true  "Vendor payload"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/vendors [post]
func (h *VendorHandler) CreateVendor(c *gin.Context) {
	var req service.CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.vendorService.CreateVendor(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, vendor))
}

// UpdateVendor patches vendor fields; addresses are replaced when present
// @Summary      Update vendor
// @Tags         vendors
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                      true  "Vendor ID"
// @Param        payload  body  service.UpdateVendorRequest  true  "Update payload"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/vendors/{id} [put]
func (h *VendorHandler) UpdateVendor(c *gin.Context) {
	var req service.UpdateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	vendor, err := h.vendorService.UpdateVendor(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, vendor))
}

// DeleteVendor soft deletes a vendor
// @Summary      Delete vendor
// @Tags         vendors
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Vendor ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/vendors/{id} [delete]
func (h *VendorHandler) DeleteVendor(c *gin.Context) {
	if err := h.vendorService.DeleteVendor(c.Request.Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Vendor deleted successfully"}))
}
