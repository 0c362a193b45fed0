package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	storedomain "github.com/smallbiznis/nectar/internal/store/domain"
)

func (s *Server) CouponUsage(c *gin.Context) {
	couponID, err := strconv.ParseInt(c.Param("coupon_id"), 10, 64)
	if err != nil {
		AbortWithError(c, newValidationError("coupon_id", "invalid_coupon_id", "invalid coupon id"))
		return
	}

	reports, err := s.storeSvc.CouponUsage(c.Request.Context(), storedomain.CouponUsageRequest{
		CouponID: couponID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reports": reports}})
}

func (s *Server) ReportCouponUsage(c *gin.Context) {
	var req storedomain.ReportCouponUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.storeSvc.ReportCouponUsage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"report_id": report.ID.String()}})
}
