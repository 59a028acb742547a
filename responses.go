package main

import (
	"errors"
	"net/http"

	"github.com/dukaanhq/dukaan_backend/utils"
	"github.com/dukaanhq/dukaan_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errors": utils.ProcessValidationErrors(err)})
		return
	}

	var mysqlErr *mysqlDriver.MySQLError

	status := http.StatusBadRequest
	switch {
	case errors.Is(err, utils.ErrProductNotFound),
		errors.Is(err, utils.ErrTransactionNotFound),
		errors.Is(err, utils.ErrPartyNotFound),
		errors.Is(err, utils.ErrorRecordNotFound):
		status = http.StatusNotFound
	case errors.Is(err, utils.ErrInsufficientStock):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrIdempotencyInProgress):
		status = http.StatusConflict
	case errors.As(err, &mysqlErr), errors.Is(err, gorm.ErrInvalidDB):
		// persistence failure, not a caller mistake
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}
