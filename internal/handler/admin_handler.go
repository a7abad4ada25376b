package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
)

// maxFormBody caps an admin form submission.
const maxFormBody = 1 << 20

// AdminHandler serves the dashboard list and form views for every admin
// resource (users, exams, materials, badges).
type AdminHandler struct {
	catalogService *service.CatalogService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(catalogService *service.CatalogService) *AdminHandler {
	return &AdminHandler{catalogService: catalogService}
}

// List godoc
// GET /api/admin/:resource?page=&per_page=&search=&sort=&order=
func (h *AdminHandler) List(c *gin.Context) {
	r, ok := h.resource(c)
	if !ok {
		return
	}

	items, p, err := h.catalogService.List(c.Request.Context(), r, listQuery(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{string(r): items}, p)
}

// Get godoc
// GET /api/admin/:resource/:id
func (h *AdminHandler) Get(c *gin.Context) {
	r, ok := h.resource(c)
	if !ok {
		return
	}

	item, err := h.catalogService.Get(c.Request.Context(), r, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"item": item})
}

// Create godoc
// POST /api/admin/:resource
// Validates the form, creates the record and drops cached lists.
func (h *AdminHandler) Create(c *gin.Context) {
	r, ok := h.resource(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	item, err := h.catalogService.Create(c.Request.Context(), r, body)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"item": item})
}

// Update godoc
// PUT /api/admin/:resource/:id
func (h *AdminHandler) Update(c *gin.Context) {
	r, ok := h.resource(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	item, err := h.catalogService.Update(c.Request.Context(), r, c.Param("id"), body)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"item": item})
}

// Delete godoc
// DELETE /api/admin/:resource/:id
func (h *AdminHandler) Delete(c *gin.Context) {
	r, ok := h.resource(c)
	if !ok {
		return
	}

	if err := h.catalogService.Delete(c.Request.Context(), r, c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

func (h *AdminHandler) resource(c *gin.Context) (client.Resource, bool) {
	r, ok := client.ParseResource(c.Param("resource"))
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return "", false
	}
	return r, true
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFormBody))
	if err != nil || len(body) == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return nil, false
	}
	return body, true
}
