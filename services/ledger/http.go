package ledger

import (
	"net/http"
	"strconv"

	"rewardsplane/pkg/config"
	"rewardsplane/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type RoutesParams struct {
	fx.In
	Engine  *gin.Engine
	Config  *config.Config
	Service *Service
}

func RegisterRoutes(p RoutesParams) {
	svc := p.Service

	p.Engine.GET("/users/:id/balance", func(c *gin.Context) {
		balance, err := svc.GetBalance(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"userId":        balance.UserID,
			"points":        balance.Points,
			"totalEarnings": balance.TotalEarnings,
		})
	})

	p.Engine.GET("/users/:id/transactions", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries, err := svc.ListTransactions(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"transactions": entries})
	})

	p.Engine.GET("/users/:id/ledger/verify", func(c *gin.Context) {
		valid, err := svc.VerifyChain(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"valid": valid})
	})

	admin := p.Engine.Group("/admin", middleware.BearerAuth(p.Config.Admin.BearerToken))
	admin.GET("/transactions", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries, err := svc.ListRecent(c.Request.Context(), limit)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"transactions": entries})
	})
}
