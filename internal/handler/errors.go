package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-portal/internal/client"
	"github.com/stemsi/exstem-portal/internal/listing"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// fail writes the envelope for err, keeping field details when there are
// any.
func fail(c *gin.Context, err error) {
	status, code, msg := service.Describe(err)

	var valErr *service.ValidationError
	if errors.As(err, &valErr) {
		response.FailWithFields(c, status, code, valErr.Fields)
		return
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		response.FailWithFields(c, status, code, apiErr.Fields)
		return
	}
	response.FailWithMessage(c, status, code, msg)
}

// listQuery reads ?page, ?per_page, ?search, ?sort and ?order.
func listQuery(c *gin.Context) listing.Query {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if err != nil || perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	return listing.Query{
		Search:  strings.TrimSpace(c.Query("search")),
		SortBy:  c.Query("sort"),
		Desc:    strings.EqualFold(c.Query("order"), "desc"),
		Page:    page,
		PerPage: perPage,
	}
}

// questionParam parses the :number path param.
func questionParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
