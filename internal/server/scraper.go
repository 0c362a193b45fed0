package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/nectar/internal/scraper"
)

type scraperStatusResponse struct {
	scraper.Snapshot
	Delay float64 `json:"delay"`
}

func (s *Server) ScraperStatus(c *gin.Context) {
	resp := scraperStatusResponse{
		Snapshot: s.pipeline.Status(),
		Delay:    s.settings.Get().Delay.Seconds(),
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) StartScraper(c *gin.Context) {
	var opts scraper.Options
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&opts); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	if err := s.pipeline.Start(c.Request.Context(), opts); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"message": "scraper started",
		"mode":    s.pipeline.Status().Mode,
	}})
}

func (s *Server) StopScraper(c *gin.Context) {
	s.pipeline.Stop()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"message": "stop signal sent, scraper will halt after the current domain",
	}})
}

type updateDelayRequest struct {
	Delay *float64 `json:"delay"`
}

func (s *Server) UpdateScraperDelay(c *gin.Context) {
	var req updateDelayRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Delay == nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	delay := time.Duration(*req.Delay * float64(time.Second))
	if err := s.settings.SetDelay(delay); err != nil {
		AbortWithError(c, newValidationError("delay", "invalid_delay", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"delay": s.settings.Get().Delay.Seconds(),
	}})
}
