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

type PurchaseOrderHandler struct {
	poService service.PurchaseOrderService
	auth      *middleware.Auth
}

func NewPurchaseOrderHandler(poService service.PurchaseOrderService, auth *middleware.Auth) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{poService: poService, auth: auth}
}

func (h *PurchaseOrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	pos := router.Group("/api/purchase-orders")
	{
		pos.GET("", h.auth.RequireRole(allRoles...), h.ListPurchaseOrders)
		pos.GET("/:id", h.auth.RequireRole(allRoles...), h.GetPurchaseOrder)
		pos.GET("/:id/pdf", h.auth.RequireRole(allRoles...), h.DownloadPDF)
		pos.POST("", h.auth.RequireRole(buyerRoles...), h.CreatePurchaseOrder)
		pos.POST("/:id/payment", h.auth.RequireRole(buyerRoles...), h.RecordPayment)
	}
}

// ListPurchaseOrders returns paginated purchase orders
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        page            query     int     false  "Page number (default: 1)"
// @Param        limit           query     int     false  "Items per page (default: 20)"
// @Param        payment_status  query     string  false  "UNPAID or PAID"
// @Param        po_number       query     string  false  "PO number prefix"
// @Param        vendor_id       query     string  false  "Vendor ID"
// @Success      200             {object}  response.Response
// @Router       /api/purchase-orders [get]
func (h *PurchaseOrderHandler) ListPurchaseOrders(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.PurchaseOrderListFilter{
		PaymentStatus: c.Query("payment_status"),
		PONumber:      c.Query("po_number"),
		Page:          p.Page,
		Limit:         p.Limit,
	}
	if raw := c.Query("vendor_id"); raw != "" {
		vendorID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid vendor_id"))
			return
		}
		filter.VendorID = &vendorID
	}

	orders, total, err := h.poService.ListPurchaseOrders(c.Request.Context(), middleware.ActorFrom(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, orders, p.Page, p.Limit, total))
}

// GetPurchaseOrder returns one purchase order with its items
// @Summary      Get purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Purchase order ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.poService.GetPurchaseOrder(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// CreatePurchaseOrder awards a submitted quotation and issues its PO
// @Summary      Create purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreatePurchaseOrderRequest  true  "Quotation to award"
// @Success      201  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/purchase-orders [post]
func (h *PurchaseOrderHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	po, err := h.poService.CreatePurchaseOrder(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, po))
}

// RecordPayment settles an unpaid purchase order
// @Summary      Record payment
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                        true  "Purchase order ID"
// @Param        payload  body  service.RecordPaymentRequest  true  "Payment"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/purchase-orders/{id}/payment [post]
func (h *PurchaseOrderHandler) RecordPayment(c *gin.Context) {
	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	po, err := h.poService.RecordPayment(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, po))
}

// DownloadPDF renders the purchase order as a PDF document
// @Summary      Purchase order PDF
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      application/pdf
// @Param        id   path  string  true  "Purchase order ID"
// @Success      200  {file}  file
// @Router       /api/purchase-orders/{id}/pdf [get]
func (h *PurchaseOrderHandler) DownloadPDF(c *gin.Context) {
	buf, filename, err := h.poService.RenderPDF(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	sendFile(c, "application/pdf", filename, buf.Bytes())
}
