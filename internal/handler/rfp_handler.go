package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/repository"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RFPHandler struct {
	rfpService service.RFPService
	auth       *middleware.Auth
}

func NewRFPHandler(rfpService service.RFPService, auth *middleware.Auth) *RFPHandler {
	return &RFPHandler{rfpService: rfpService, auth: auth}
}

func (h *RFPHandler) RegisterRoutes(router *gin.RouterGroup) {
	rfps := router.Group("/api/rfps")
	{
		rfps.GET("", h.auth.RequireRole(allRoles...), h.ListRFPs)
		rfps.GET("/:id", h.auth.RequireRole(allRoles...), h.GetRFP)
		rfps.POST("", h.auth.RequireRole(buyerRoles...), h.CreateRFP)
		rfps.PUT("/:id", h.auth.RequireRole(buyerRoles...), h.UpdateRFP)
		rfps.PUT("/:id/products", h.auth.RequireRole(buyerRoles...), h.ReplaceProducts)
		rfps.POST("/:id/vendors", h.auth.RequireRole(buyerRoles...), h.InviteVendors)
		rfps.POST("/:id/submit", h.auth.RequireRole(buyerRoles...), h.SubmitRFP)
		rfps.POST("/:id/cancel", h.auth.RequireRole(buyerRoles...), h.CancelRFP)
	}
}

// ListRFPs returns paginated RFPs. Vendors only see RFPs they are invited to.
// @Summary      List RFPs
// @Tags         rfps
// @Security     BearerAuth
// @Produce      json
// @Param        page       query     int     false  "Page number (default: 1)"
// @Param        limit      query     int     false  "Items per page (default: 20)"
// @Param        status     query     string  false  "DRAFT, SUBMITTED, PO_CREATED, PAID, CANCELLED"
// @Param        search     query     string  false  "Search by code or title"
// @Param        vendor_id  query     string  false  "Only RFPs inviting this vendor"
// @Success      200        {object}  response.Response
// @Router       /api/rfps [get]
func (h *RFPHandler) ListRFPs(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.RFPListFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Page:   p.Page,
		Limit:  p.Limit,
	}
	if raw := c.Query("vendor_id"); raw != "" {
		vendorID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid vendor_id"))
			return
		}
		filter.VendorID = &vendorID
	}

	rfps, total, err := h.rfpService.ListRFPs(c.Request.Context(), middleware.ActorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, rfps, p.Page, p.Limit, total))
}

// GetRFP returns an RFP with its products and invited vendors
// @Summary      Get RFP
// @Tags         rfps
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "RFP ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/rfps/{id} [get]
func (h *RFPHandler) GetRFP(c *gin.Context) {
	rfp, err := h.rfpService.GetRFP(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rfp))
}

// CreateRFP creates a DRAFT RFP
// @Summary      Create RFP
// @Tags         rfps
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateRFPRequest  true  "RFP payload"
// @Success      201  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/rfps [post]
func (h *RFPHandler) CreateRFP(c *gin.Context) {
	var req service.CreateRFPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rfp, err := h.rfpService.CreateRFP(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, rfp))
}

// UpdateRFP edits the header fields of an open RFP
// @Summary      Update RFP
// @Tags         rfps
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                   true  "RFP ID"
// @Param        payload  body  service.UpdateRFPRequest  true  "Update payload"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/rfps/{id} [put]
func (h *RFPHandler) UpdateRFP(c *gin.Context) {
	var req service.UpdateRFPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rfp, err := h.rfpService.UpdateRFP(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rfp))
}

// ReplaceProducts swaps the requested product list and reseeds every quotation
// @Summary      Replace RFP products
// @Tags         rfps
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                          true  "RFP ID"
// @Param        payload  body  service.ReplaceProductsRequest  true  "Products"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/rfps/{id}/products [put]
func (h *RFPHandler) ReplaceProducts(c *gin.Context) {
	var req service.ReplaceProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rfp, err := h.rfpService.ReplaceProducts(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rfp))
}

// InviteVendors adds active vendors to the RFP
// @Summary      Invite vendors
// @Tags         rfps
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                        true  "RFP ID"
// @Param        payload  body  service.InviteVendorsRequest  true  "Vendor IDs"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/rfps/{id}/vendors [post]
func (h *RFPHandler) InviteVendors(c *gin.Context) {
	var req service.InviteVendorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rfp, err := h.rfpService.InviteVendors(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rfp))
}

// SubmitRFP moves a DRAFT RFP to SUBMITTED
// @Summary      Submit RFP
// @Tags         rfps
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "RFP ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/rfps/{id}/submit [post]
func (h *RFPHandler) SubmitRFP(c *gin.Context) {
	rfp, err := h.rfpService.SubmitRFP(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rfp))
}

// CancelRFP cancels a DRAFT or SUBMITTED RFP
// @Summary      Cancel RFP
// @Tags         rfps
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "RFP ID"
// @Success      200  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/rfps/{id}/cancel [post]
func (h *RFPHandler) CancelRFP(c *gin.Context) {
	rfp, err := h.rfpService.CancelRFP(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rfp))
}
