package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type testCleanupRequest struct {
	ApartmentIDs []string `json:"apartment_ids"`
}

// TestCleanup removes every row owned by the given apartments. It is only
// routed outside production and backs end-to-end test runs. It hard-deletes
// payments and their transitions on purpose; the billing engine itself never
// deletes a payment, it only moves it between statuses.
func (s *Server) TestCleanup(c *gin.Context) {
	if s.cfg.IsProduction() {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req testCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	apartmentIDs := make([]int64, 0, len(req.ApartmentIDs))
	for _, raw := range req.ApartmentIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			AbortWithError(c, newValidationError("apartment_ids", "invalid_apartment_ids", "invalid apartment id"))
			return
		}
		apartmentIDs = append(apartmentIDs, id.Int64())
	}
	if len(apartmentIDs) == 0 {
		AbortWithError(c, newValidationError("apartment_ids", "required", "apartment_ids is required"))
		return
	}

	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		statements := []string{
			`DELETE FROM payment_transitions WHERE payment_id IN (SELECT id FROM payments WHERE apartment_id IN ?)`,
			`DELETE FROM payments WHERE apartment_id IN ?`,
			`DELETE FROM meter_readings WHERE apartment_id IN ?`,
			`DELETE FROM service_requests WHERE apartment_id IN ?`,
		}
		for _, stmt := range statements {
			if err := tx.Exec(stmt, apartmentIDs).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
