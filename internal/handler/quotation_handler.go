package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type QuotationHandler struct {
	quotationService service.QuotationService
	auth             *middleware.Auth
	recalcLimit      gin.HandlerFunc
}

// NewQuotationHandler wires the quotation routes. recalcLimit may be nil.
func NewQuotationHandler(quotationService service.QuotationService, auth *middleware.Auth, recalcLimit gin.HandlerFunc) *QuotationHandler {
	return &QuotationHandler{quotationService: quotationService, auth: auth, recalcLimit: recalcLimit}
}

func (h *QuotationHandler) RegisterRoutes(router *gin.RouterGroup) {
	byRFP := router.Group("/api/rfps/:id")
	{
		byRFP.GET("/quotations", h.auth.RequireRole(allRoles...), h.ListQuotations)
		byRFP.POST("/quotations", h.auth.RequireRole(allRoles...), h.StartQuotation)
		byRFP.GET("/comparison", h.auth.RequireRole(buyerRoles...), h.CompareQuotations)
		byRFP.GET("/comparison/export", h.auth.RequireRole(buyerRoles...), h.ExportComparison)
	}

	recalc := []gin.HandlerFunc{h.auth.RequireRole(allRoles...)}
	if h.recalcLimit != nil {
		recalc = append(recalc, h.recalcLimit)
	}
	recalc = append(recalc, h.Recalculate)

	quotations := router.Group("/api/quotations")
	{
		quotations.GET("/:id", h.auth.RequireRole(allRoles...), h.GetQuotation)
		quotations.POST("/:id/recalculate", recalc...)
		quotations.PUT("/:id", h.auth.RequireRole(allRoles...), h.SaveQuotation)
	}
}

// ListQuotations returns the quotations of an RFP. Vendors only get their own.
// @Summary      List quotations of an RFP
// @Tags         quotations
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "RFP ID"
// @Success      200  {object}  response.Response
// @Router       /api/rfps/{id}/quotations [get]
func (h *QuotationHandler) ListQuotations(c *gin.Context) {
	quotations, err := h.quotationService.ListQuotations(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, quotations))
}

// StartQuotation seeds a quotation for an invited vendor from the RFP products
// @Summary      Start quotation
// @Tags         quotations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                          true  "RFP ID"
// @Param        payload  body  service.StartQuotationRequest   false "Vendor (buyers only; vendors use their token)"
// @Success      201  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/rfps/{id}/quotations [post]
func (h *QuotationHandler) StartQuotation(c *gin.Context) {
	var req service.StartQuotationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	q, err := h.quotationService.StartQuotation(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, q))
}

// GetQuotation returns one quotation with its rows and totals
// @Summary      Get quotation
// @Tags         quotations
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Quotation ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/quotations/{id} [get]
func (h *QuotationHandler) GetQuotation(c *gin.Context) {
	q, err := h.quotationService.GetQuotation(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// Recalculate previews row amounts and the total without persisting them.
// Subscribers of the RFP are notified when the total moves.
// @Summary      Recalculate quotation total
// @Tags         quotations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "Quotation ID"
// @Param        payload  body  service.QuotationInput  true  "Edited rows"
// @Success      200  {object}  response.Response
// @Failure      429  {object}  response.Response
// @Router       /api/quotations/{id}/recalculate [post]
func (h *QuotationHandler) Recalculate(c *gin.Context) {
	var input service.QuotationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.quotationService.Recalculate(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// SaveQuotation persists the edited rows and the recomputed total
// @Summary      Save quotation
// @Tags         quotations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "Quotation ID"
// @Param        payload  body  service.QuotationInput  true  "Edited rows"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/quotations/{id} [put]
func (h *QuotationHandler) SaveQuotation(c *gin.Context) {
	var input service.QuotationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	q, err := h.quotationService.SaveQuotation(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, q))
}

// CompareQuotations ranks the submitted quotations of an RFP
// @Summary      Compare quotations
// @Tags         quotations
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "RFP ID"
// @Success      200  {object}  response.Response
// @Router       /api/rfps/{id}/comparison [get]
func (h *QuotationHandler) CompareQuotations(c *gin.Context) {
	cmp, err := h.quotationService.CompareQuotations(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, cmp))
}

// ExportComparison downloads the comparison as an Excel workbook
// @Summary      Export comparison
// @Tags         quotations
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id   path  string  true  "RFP ID"
// @Success      200  {file}  file
// @Router       /api/rfps/{id}/comparison/export [get]
func (h *QuotationHandler) ExportComparison(c *gin.Context) {
	buf, filename, err := h.quotationService.ExportComparison(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	sendFile(c, xlsxContentType, filename, buf.Bytes())
}
