package offerwall

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"rewardsplane/pkg/config"
	"rewardsplane/pkg/errutil"
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

	callback := func(c *gin.Context) {
		payload := flattenPayload(c)

		providerName := c.Param("provider")
		if providerName == "" {
			providerName = payload["provider"]
		}

		if _, err := svc.HandleCallback(c.Request.Context(), providerName, payload); err != nil {
			c.Error(err)
			return
		}

		// Networks parse this body loosely; anything non-200 triggers a
		// retry of the same postback.
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "1"})
	}

	p.Engine.GET("/offers/callback", callback)
	p.Engine.POST("/offers/callback", callback)
	p.Engine.GET("/offers/callback/:provider", callback)
	p.Engine.POST("/offers/callback/:provider", callback)

	p.Engine.POST("/offers/:offerId/start", func(c *gin.Context) {
		var body struct {
			UserID  string `json:"userId" binding:"required"`
			ClickID string `json:"clickId" binding:"required"`
			Payout  int64  `json:"payout"`
			Title   string `json:"title"`
			Network string `json:"provider"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Error(errutil.ValidationFailed("invalid request body", err))
			return
		}

		completion, err := svc.CreateCompletion(c.Request.Context(), CreateCompletionInput{
			ClickID:  body.ClickID,
			UserID:   body.UserID,
			OfferID:  c.Param("offerId"),
			Provider: body.Network,
			Payout:   body.Payout,
			Title:    body.Title,
		})
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"completionId": completion.ID,
			"status":       completion.Status,
			"payout":       completion.Payout,
		})
	})

	admin := p.Engine.Group("/admin", middleware.BearerAuth(p.Config.Admin.BearerToken))
	admin.GET("/completions", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		completions, err := svc.ListCompletions(c.Request.Context(), c.Query("status"), limit)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"completions": completions})
	})
}

// flattenPayload collapses query params, form fields and a JSON body into a
// single string map, since providers split the same fields across all three
// depending on whether they POST or GET.
func flattenPayload(c *gin.Context) map[string]string {
	payload := map[string]string{}

	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			payload[key] = values[0]
		}
	}

	if strings.Contains(c.ContentType(), "json") {
		var body map[string]any
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err == nil {
			for key, value := range body {
				switch v := value.(type) {
				case string:
					payload[key] = v
				case float64:
					payload[key] = strconv.FormatFloat(v, 'f', -1, 64)
				case bool:
					payload[key] = strconv.FormatBool(v)
				case nil:
					// skip
				default:
					payload[key] = fmt.Sprintf("%v", v)
				}
			}
		}
	} else {
		_ = c.Request.ParseForm()
		for key, values := range c.Request.PostForm {
			if len(values) > 0 {
				payload[key] = values[0]
			}
		}
	}

	return payload
}
