package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

var csvHeader = []string{
	"domain", "store_id", "partial_url", "name", "country", "url",
	"active", "supported", "shoppers_30d", "logo_url", "created", "updated",
	"num_coupons",
}

// ExportCSV streams every store with its coupon count as a CSV attachment.
func (s *Server) ExportCSV(c *gin.Context) {
	summaries, err := s.storeSvc.ExportSummaries(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("stores_export_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	if err := w.Write(csvHeader); err != nil {
		return
	}
	for _, row := range summaries {
		record := []string{
			row.Domain,
			row.StoreID,
			row.PartialURL,
			row.Name,
			row.Country,
			row.URL,
			boolToIntString(row.Active),
			boolToIntString(row.Supported),
			strconv.FormatInt(row.Shoppers30d, 10),
			row.LogoURL,
			strconv.FormatInt(row.Created, 10),
			strconv.FormatInt(row.Updated, 10),
			strconv.FormatInt(row.CouponCount, 10),
		}
		if err := w.Write(record); err != nil {
			return
		}
	}
	w.Flush()
}

// ExportJSON returns the full store rows as a JSON attachment.
func (s *Server) ExportJSON(c *gin.Context) {
	stores, err := s.storeSvc.ExportStores(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("stores_export_%s.json", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

func boolToIntString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
