package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tirta/internal/authorization"
	paymentdomain "github.com/smallbiznis/tirta/internal/payment/domain"
)

// authorizeAction guards routes that are not bound to a single apartment.
// Residents are checked inside their own apartment.
func (s *Server) authorizeAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeApartment(c, object, action, scopedApartment(c, "")); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeApartment(c *gin.Context, object string, action string, apartmentID string) error {
	actor, ok := actorFromContext(c)
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), actor, strings.TrimSpace(object), strings.TrimSpace(action), strings.TrimSpace(apartmentID))
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	if c == nil {
		return authorization.Actor{}, false
	}
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	return actor, ok
}

// scopedApartment narrows an empty apartment filter to the resident's own
// apartment. Admins keep the filter as given.
func scopedApartment(c *gin.Context, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		return requested
	}
	actor, ok := actorFromContext(c)
	if ok && actor.Type == authorization.ActorResident {
		return actor.ApartmentID
	}
	return ""
}

func paymentActor(c *gin.Context) paymentdomain.Actor {
	actor, _ := actorFromContext(c)
	return paymentdomain.Actor{Type: actor.Type, ID: actor.ID}
}

func paymentActionPermission(action paymentdomain.Action) (string, bool) {
	switch action {
	case paymentdomain.ActionPay:
		return authorization.ActionPaymentPay, true
	case paymentdomain.ActionCancel:
		return authorization.ActionPaymentCancel, true
	case paymentdomain.ActionRestore:
		return authorization.ActionPaymentRestore, true
	default:
		return "", false
	}
}
