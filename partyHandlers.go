package main

import (
	"github.com/dukaanhq/dukaan_backend/models"
	"github.com/gin-gonic/gin"
)

func listPartiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var partyType *models.PartyType
		if t := c.Query("type"); t != "" {
			v := models.PartyType(t)
			partyType = &v
		}
		var name *string
		if n := c.Query("name"); n != "" {
			name = &n
		}
		parties, err := models.GetParties(c.Request.Context(), partyType, name)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, parties)
	}
}

func getPartyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		party, err := models.GetParty(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, party)
	}
}

func remindPartyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		party, err := models.MarkPartyReminded(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, party)
	}
}
