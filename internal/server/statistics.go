package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tirta/internal/authorization"
	statisticsdomain "github.com/smallbiznis/tirta/internal/statistics/domain"
)

func (s *Server) GetPaymentStatistics(c *gin.Context) {
	req, ok := s.statisticsRequest(c)
	if !ok {
		return
	}

	resp, err := s.statisticsSvc.Payments(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetServiceRequestStatistics(c *gin.Context) {
	req, ok := s.statisticsRequest(c)
	if !ok {
		return
	}

	resp, err := s.statisticsSvc.ServiceRequests(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) statisticsRequest(c *gin.Context) (statisticsdomain.Request, bool) {
	var req statisticsdomain.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, newValidationError("year", "invalid_year", "invalid year"))
		return req, false
	}

	req.ApartmentID = scopedApartment(c, req.ApartmentID)
	if err := s.authorizeApartment(c, authorization.ObjectStatistics, authorization.ActionStatisticsView, req.ApartmentID); err != nil {
		AbortWithError(c, err)
		return req, false
	}
	return req, true
}
