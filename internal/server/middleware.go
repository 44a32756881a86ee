package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tirta/internal/authorization"
	obscontext "github.com/smallbiznis/tirta/internal/observability/context"
)

// Identity headers are set by the upstream gateway after authentication.
const (
	HeaderActorType   = "X-Actor-Type"
	HeaderActorID     = "X-Actor-Id"
	HeaderApartmentID = "X-Apartment-Id"

	contextActorKey = "actor"
)

// ActorRequired reads the caller identity headers and stores the actor on the
// gin and request contexts.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := authorization.Actor{
			Type:        strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorType))),
			ID:          strings.TrimSpace(c.GetHeader(HeaderActorID)),
			ApartmentID: strings.TrimSpace(c.GetHeader(HeaderApartmentID)),
		}
		switch actor.Type {
		case authorization.ActorResident:
			if actor.ApartmentID == "" {
				AbortWithError(c, ErrUnauthorized)
				return
			}
		case authorization.ActorAdmin:
		default:
			// system actors never come in over HTTP
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if actor.ID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), actor.Type, actor.ID)
		if actor.ApartmentID != "" {
			ctx = obscontext.WithApartmentID(ctx, actor.ApartmentID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorKey, actor)
		c.Next()
	}
}
