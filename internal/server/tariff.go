package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/billingperiod"
	tariffdomain "github.com/smallbiznis/tirta/internal/tariff/domain"
)

type createTariffRequest struct {
	ColdWaterRate *decimal.Decimal `json:"cold_water_rate"`
	HotWaterRate  *decimal.Decimal `json:"hot_water_rate"`
	SewageRate    *decimal.Decimal `json:"sewage_rate"`
	ValidFrom     string           `json:"valid_from"`
}

func (s *Server) CreateTariff(c *gin.Context) {
	var req createTariffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	for _, rate := range []struct {
		field string
		value *decimal.Decimal
	}{
		{"cold_water_rate", req.ColdWaterRate},
		{"hot_water_rate", req.HotWaterRate},
		{"sewage_rate", req.SewageRate},
	} {
		if rate.value == nil {
			AbortWithError(c, newValidationError(rate.field, "required", rate.field+" is required"))
			return
		}
	}

	resp, err := s.tariffSvc.Create(c.Request.Context(), tariffdomain.CreateRequest{
		ColdWaterRate: *req.ColdWaterRate,
		HotWaterRate:  *req.HotWaterRate,
		SewageRate:    *req.SewageRate,
		ValidFrom:     strings.TrimSpace(req.ValidFrom),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTariffs(c *gin.Context) {
	resp, err := s.tariffSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResolveTariff(c *gin.Context) {
	period, err := billingperiod.Parse(c.Query("period"))
	if err != nil {
		AbortWithError(c, newValidationError("period", "invalid_period", "period must be YYYY-MM"))
		return
	}

	tariff, err := s.tariffSvc.Resolve(c.Request.Context(), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":              tariff.ID.String(),
		"period":          period.String(),
		"cold_water_rate": tariff.ColdWaterRate,
		"hot_water_rate":  tariff.HotWaterRate,
		"sewage_rate":     tariff.SewageRate,
		"valid_from":      tariff.ValidFrom.UTC().Format(dateOnlyLayout),
	}})
}
