package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) getStats(c *gin.Context) {
	stats, err := a.eng.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
