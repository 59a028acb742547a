package main

import (
	"strconv"
	"time"

	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/dukaanhq/dukaan_backend/models/reports"
	"github.com/dukaanhq/dukaan_backend/workflow"
	"github.com/gin-gonic/gin"
)

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(400, gin.H{"success": false, "message": "invalid id"})
		return 0, false
	}
	return id, true
}

func createTransactionHandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		idempotencyKey := c.GetHeader("Idempotency-Key")
		transaction, err := workflow.CreateTransaction(c.Request.Context(), &input, idempotencyKey)
		if err != nil {
			respondError(c, err)
			return
		}
		respondCreated(c, transaction)
	}
}

func updateTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewTransaction
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, err)
			return
		}
		transaction, err := workflow.UpdateTransaction(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, transaction)
	}
}

func deleteTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		transaction, err := workflow.DeleteTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, transaction)
	}
}

func markTransactionPaidHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		transaction, err := workflow.MarkTransactionPaid(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, transaction)
	}
}

func getTransactionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		transaction, err := models.GetTransaction(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, transaction)
	}
}

func listTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var txnType *models.TransactionType
		if t := c.Query("type"); t != "" {
			v := models.TransactionType(t)
			txnType = &v
		}
		var partyId *int
		if p := c.Query("party_id"); p != "" {
			if id, err := strconv.Atoi(p); err == nil {
				partyId = &id
			}
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		transactions, total, err := models.GetTransactions(c.Request.Context(), txnType, partyId, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, gin.H{"transactions": transactions, "total": total})
	}
}

// listOverdueTransactionsHandler feeds the external reminder sweep: unpaid
// credit transactions past their due date.
func listOverdueTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		transactions, err := models.GetOverdueCreditTransactions(c.Request.Context(), time.Now())
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, transactions)
	}
}

func exportTransactionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var txnType *models.TransactionType
		if t := c.Query("type"); t != "" {
			v := models.TransactionType(t)
			txnType = &v
		}
		f, err := reports.BuildTransactionsExcel(c.Request.Context(), txnType)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=transactions.xlsx")
		if err := f.Write(c.Writer); err != nil {
			_ = c.Error(err)
		}
	}
}
