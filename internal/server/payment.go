package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tirta/internal/authorization"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
)

type generatePaymentRequest struct {
	ApartmentID string `json:"apartment_id"`
	Period      string `json:"period"`
}

type paymentActionRequest struct {
	Action string `json:"action"`
}

type overdueSweepRequest struct {
	AsOf string `json:"as_of"`
}

func (s *Server) GeneratePayment(c *gin.Context) {
	var req generatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	apartmentID := strings.TrimSpace(req.ApartmentID)
	if apartmentID == "" {
		AbortWithError(c, newValidationError("apartment_id", "required", "apartment_id is required"))
		return
	}
	if err := s.authorizeApartment(c, authorization.ObjectPayment, authorization.ActionPaymentGenerate, apartmentID); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.Generate(c.Request.Context(), paymentdomain.GenerateRequest{
		ApartmentID: apartmentID,
		Period:      strings.TrimSpace(req.Period),
		Actor:       paymentActor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyPaymentAction(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req paymentActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	action := paymentdomain.Action(strings.ToLower(strings.TrimSpace(req.Action)))
	permission, ok := paymentActionPermission(action)
	if !ok {
		AbortWithError(c, paymentdomain.ErrInvalidAction)
		return
	}

	current, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.authorizeApartment(c, authorization.ObjectPayment, permission, current.ApartmentID); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.ApplyAction(c.Request.Context(), paymentdomain.ActionRequest{
		PaymentID: id,
		Action:    action,
		Actor:     paymentActor(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPaymentByID(c *gin.Context) {
	resp, err := s.viewablePayment(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPaymentTransitions(c *gin.Context) {
	payment, err := s.viewablePayment(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.ListTransitions(c.Request.Context(), payment.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayments(c *gin.Context) {
	var req paymentdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req.ApartmentID = scopedApartment(c, req.ApartmentID)
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.authorizeApartment(c, authorization.ObjectPayment, authorization.ActionPaymentView, req.ApartmentID); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.paymentSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) RunOverdueSweep(c *gin.Context) {
	var req overdueSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}

	asOf := s.clock.Now()
	parsed, err := parseOptionalTime(req.AsOf, false)
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "invalid as_of"))
		return
	}
	if parsed != nil {
		asOf = *parsed
	}

	count, err := s.paymentSvc.RunOverdueSweep(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"count": count,
		"as_of": asOf.UTC(),
	}})
}

func (s *Server) viewablePayment(c *gin.Context) (*paymentdomain.Response, error) {
	id := strings.TrimSpace(c.Param("id"))
	payment, err := s.paymentSvc.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeApartment(c, authorization.ObjectPayment, authorization.ActionPaymentView, payment.ApartmentID); err != nil {
		return nil, err
	}
	return payment, nil
}
