package main

import (
	"strconv"

	"github.com/dukaanhq/dukaan_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func businessSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		months, _ := strconv.Atoi(c.DefaultQuery("months", "6"))
		summary, err := reports.GetBusinessSummary(c.Request.Context(), months)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, summary)
	}
}
