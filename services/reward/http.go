package reward

import (
	"net/http"

	"rewardsplane/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type RoutesParams struct {
	fx.In
	Engine  *gin.Engine
	Service *Service
}

func RegisterRoutes(p RoutesParams) {
	svc := p.Service

	p.Engine.POST("/ads", func(c *gin.Context) {
		var body struct {
			UserID string `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", err))
			return
		}

		result, err := svc.StartAd(c.Request.Context(), body.UserID)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, result)
	})

	p.Engine.PATCH("/ads", func(c *gin.Context) {
		var body struct {
			AdViewID string `json:"adViewId" binding:"required"`
			UserID   string `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", err))
			return
		}

		result, err := svc.CompleteAd(c.Request.Context(), body.AdViewID, body.UserID)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, result)
	})
}
