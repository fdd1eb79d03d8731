// Catalog HTTP handlers.
//
// Read endpoints feed the dropdowns of the inspection form; the admin
// endpoints maintain the catalog.
//   - GET  /product-lines
//   - GET  /product-lines/{id}/models
//   - GET  /product-lines/{id}/leakage-types
//   - GET  /machines/lookup?chassis_number=&model_id=
//   - POST /admin/product-lines | /admin/models | /admin/leakage-types
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// CreateProductLineRequest is the payload for a new product line.
type CreateProductLineRequest struct {
	Code string `json:"code" binding:"required" example:"EXC"`
	Name string `json:"name" binding:"required" example:"Excavators"`
}

// CreateLineItemRequest is the payload for a new model or leakage type,
// both of which belong to a product line.
type CreateLineItemRequest struct {
	ProductLineID string `json:"product_line_id" binding:"required" format:"uuid"`
	Code          string `json:"code"            binding:"required" example:"EX200"`
	Name          string `json:"name"            binding:"required" example:"EX200 crawler"`
}

// ProductLinesResponse wraps the product line list.
type ProductLinesResponse struct {
	ProductLines []domain.ProductLine `json:"product_lines"`
}

// ModelsResponse wraps the models of one product line.
type ModelsResponse struct {
	Models []domain.Model `json:"models"`
}

// LeakageTypesResponse wraps the leakage types of one product line.
type LeakageTypesResponse struct {
	LeakageTypes []domain.LeakageType `json:"leakage_types"`
}

// ListProductLines godoc
// @ID          listProductLines
// @Summary     List product lines
// @Tags        Catalog
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ProductLinesResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /product-lines [get]
func (h *Handlers) ListProductLines(c *gin.Context) {
	items, err := h.catalog.ProductLines(c.Request.Context())
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ProductLinesResponse{ProductLines: items})
}

// ListModels godoc
// @ID          listModels
// @Summary     List models of a product line
// @Tags        Catalog
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Product line ID"  format(uuid)
// @Success     200  {object}  handlers.ModelsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown product line"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /product-lines/{id}/models [get]
func (h *Handlers) ListModels(c *gin.Context) {
	items, err := h.catalog.Models(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ModelsResponse{Models: items})
}

// ListLeakageTypes godoc
// @ID          listLeakageTypes
// @Summary     List leakage types of a product line
// @Tags        Catalog
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Product line ID"  format(uuid)
// @Success     200  {object}  handlers.LeakageTypesResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown product line"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /product-lines/{id}/leakage-types [get]
func (h *Handlers) ListLeakageTypes(c *gin.Context) {
	items, err := h.catalog.LeakageTypes(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, LeakageTypesResponse{LeakageTypes: items})
}

// LookupMachine godoc
// @ID          lookupMachine
// @Summary     Look up a registered machine
// @Description Finds a machine by chassis number within a model. Returns 404 when the chassis is not registered.
// @Tags        Catalog
// @Produce     json
// @Security    BearerAuth
// @Param       chassis_number  query  string  true  "Chassis number"  example(EX200-0042)
// @Param       model_id        query  string  true  "Model ID"        format(uuid)
// @Success     200  {object}  domain.Machine
// @Failure     400  {object}  handlers.ErrorResponse  "Missing parameters"
// @Failure     404  {object}  handlers.ErrorResponse  "Machine not registered"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /machines/lookup [get]
func (h *Handlers) LookupMachine(c *gin.Context) {
	m, err := h.catalog.LookupMachine(c.Request.Context(), c.Query("chassis_number"), c.Query("model_id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, m)
}

// CreateProductLine godoc
// @ID          createProductLine
// @Summary     Create a product line
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateProductLineRequest  true  "Product line"
// @Success     201  {object}  domain.ProductLine
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Code already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/product-lines [post]
func (h *Handlers) CreateProductLine(c *gin.Context) {
	var req CreateProductLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code and name are required")
		return
	}
	pl, err := h.catalog.CreateProductLine(c.Request.Context(), req.Code, req.Name)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, pl)
}

// CreateModel godoc
// @ID          createModel
// @Summary     Create a model
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateLineItemRequest  true  "Model"
// @Success     201  {object}  domain.Model
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown product line"
// @Failure     409  {object}  handlers.ErrorResponse  "Code already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/models [post]
func (h *Handlers) CreateModel(c *gin.Context) {
	var req CreateLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product_line_id, code and name are required")
		return
	}
	m, err := h.catalog.CreateModel(c.Request.Context(), req.ProductLineID, req.Code, req.Name)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, m)
}

// CreateLeakageType godoc
// @ID          createLeakageType
// @Summary     Create a leakage type
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.CreateLineItemRequest  true  "Leakage type"
// @Success     201  {object}  domain.LeakageType
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown product line"
// @Failure     409  {object}  handlers.ErrorResponse  "Code already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/leakage-types [post]
func (h *Handlers) CreateLeakageType(c *gin.Context) {
	var req CreateLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "product_line_id, code and name are required")
		return
	}
	lt, err := h.catalog.CreateLeakageType(c.Request.Context(), req.ProductLineID, req.Code, req.Name)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, lt)
}
