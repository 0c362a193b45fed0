package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	storedomain "github.com/smallbiznis/nectar/internal/store/domain"
	"github.com/smallbiznis/nectar/pkg/db/pagination"
)

func (s *Server) ListStores(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search     string `form:"search"`
		Country    string `form:"country"`
		ActiveOnly bool   `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.storeSvc.ListStores(c.Request.Context(), storedomain.ListStoresRequest{
		Pagination: query.Pagination,
		Search:     strings.TrimSpace(query.Search),
		Country:    strings.TrimSpace(query.Country),
		ActiveOnly: query.ActiveOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStore(c *gin.Context) {
	resp, err := s.storeSvc.GetStore(c.Request.Context(), storedomain.GetStoreRequest{
		StoreID: c.Param("store_id"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Countries(c *gin.Context) {
	countries, err := s.storeSvc.Countries(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"countries": countries}})
}
