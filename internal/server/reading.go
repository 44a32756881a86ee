package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tirta/internal/authorization"
	readingdomain "github.com/smallbiznis/tirta/internal/reading/domain"
)

type recordReadingRequest struct {
	ApartmentID string           `json:"apartment_id"`
	Period      string           `json:"period"`
	WaterType   string           `json:"water_type"`
	Location    string           `json:"location"`
	Indication  *decimal.Decimal `json:"indication"`
	RecordedAt  string           `json:"recorded_at"`
}

func (s *Server) RecordReading(c *gin.Context) {
	var req recordReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Indication == nil {
		AbortWithError(c, newValidationError("indication", "required", "indication is required"))
		return
	}
	recordedAt, err := parseOptionalTime(req.RecordedAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("recorded_at", "invalid_recorded_at", "invalid recorded_at"))
		return
	}

	apartmentID := scopedApartment(c, req.ApartmentID)
	if err := s.authorizeApartment(c, authorization.ObjectReading, authorization.ActionReadingRecord, apartmentID); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.readingSvc.Record(c.Request.Context(), readingdomain.RecordRequest{
		ApartmentID: apartmentID,
		Period:      strings.TrimSpace(req.Period),
		WaterType:   readingdomain.WaterType(strings.ToLower(strings.TrimSpace(req.WaterType))),
		Location:    strings.TrimSpace(req.Location),
		Indication:  *req.Indication,
		RecordedAt:  recordedAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListReadings(c *gin.Context) {
	var query struct {
		ApartmentID string `form:"apartment_id"`
		Period      string `form:"period"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	apartmentID := scopedApartment(c, query.ApartmentID)
	if apartmentID == "" {
		AbortWithError(c, newValidationError("apartment_id", "required", "apartment_id is required"))
		return
	}
	if err := s.authorizeApartment(c, authorization.ObjectReading, authorization.ActionReadingView, apartmentID); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.readingSvc.List(c.Request.Context(), apartmentID, strings.TrimSpace(query.Period))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
