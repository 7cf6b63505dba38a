package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/partaj/referral-api/pkg/errors"
)

// ErrorBody is the error envelope returned on every failed request.
type ErrorBody struct {
	Errors []string `json:"errors"`
}

// FieldErrorBody is returned when a validation failure maps to named fields,
// e.g. sending a draft referral with missing required fields.
type FieldErrorBody map[string][]string

// Pagination represents pagination metadata
type Pagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
	TotalPage int `json:"total_pages"`
}

// PaginatedResponse wraps paginated data
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

// RespondWithSuccess sends the resource as-is with a 200.
func RespondWithSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// RespondWithCreated sends the resource as-is with a 201.
func RespondWithCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// RespondWithError renders err as an errors list with the mapped status.
// Unexpected internal errors are logged and never leaked to the client.
func RespondWithError(c *gin.Context, err error) {
	if fieldErrs, ok := errors.AsFieldErrors(err); ok {
		RespondWithFieldErrors(c, FieldErrorBody(fieldErrs.Fields))
		return
	}
	if appErr, ok := errors.AsAppError(err); ok {
		if appErr.Code == errors.ErrInternal {
			log.Error().Err(appErr.Err).Str("path", c.Request.URL.Path).Msg("internal error")
			c.JSON(appErr.StatusCode(), ErrorBody{Errors: []string{appErr.Message}})
			return
		}
		c.JSON(appErr.StatusCode(), ErrorBody{Errors: []string{appErr.Message}})
		return
	}

	log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, ErrorBody{Errors: []string{"internal server error"}})
}

// RespondWithFieldErrors renders a per-field validation error map as a 400.
func RespondWithFieldErrors(c *gin.Context, fields FieldErrorBody) {
	c.JSON(http.StatusBadRequest, fields)
}

// RespondWithPagination sends a paginated response
func RespondWithPagination(c *gin.Context, data interface{}, page, pageSize, total int) {
	totalPages := (total + pageSize - 1) / pageSize

	c.JSON(http.StatusOK, PaginatedResponse{
		Data: data,
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPages,
		},
	})
}
