package tournament

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type entryView struct {
	UserID string `json:"userId"`
	Points int64  `json:"points"`
	Rank   int    `json:"rank"`
}

func RegisterRoutes(engine *gin.Engine, svc *Service) {
	engine.GET("/tournament/leaderboard", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))

		entries, err := svc.Leaderboard(c.Request.Context(), c.Query("week"), limit)
		if err != nil {
			c.Error(err)
			return
		}

		views := make([]entryView, 0, len(entries))
		for i, e := range entries {
			views = append(views, entryView{UserID: e.UserID, Points: e.Points, Rank: i + 1})
		}

		week := c.Query("week")
		if week == "" && len(entries) > 0 {
			week = entries[0].WeekKey
		}

		c.JSON(http.StatusOK, gin.H{"week": week, "entries": views})
	})
}
