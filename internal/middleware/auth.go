package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/maninjwa/stock-count-backend/internal/apierror"
	"github.com/maninjwa/stock-count-backend/internal/policy"
)

const (
	ActorKey = "actor"

	// tokenTypeAccess must match the "typ" claim of access tokens.
	tokenTypeAccess = "access"
)

// JWTAuth validates the Bearer token on every protected route and stores the
// caller as a policy.Actor. Refresh tokens are not accepted here.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			abort(c, apierror.Unauthenticated("authentication required"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			abort(c, apierror.Unauthenticated("token is invalid or expired"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, apierror.Unauthenticated("invalid claims"))
			return
		}
		actor, err := actorFromClaims(claims)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

func actorFromClaims(claims jwt.MapClaims) (policy.Actor, error) {
	if typ, _ := claims["typ"].(string); typ != tokenTypeAccess {
		return policy.Actor{}, apierror.Unauthenticated("not an access token")
	}
	raw, _ := claims["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return policy.Actor{}, apierror.Unauthenticated("malformed token")
	}
	actor := policy.Actor{ID: id}
	if groups, ok := claims["groups"].([]interface{}); ok {
		for _, g := range groups {
			if s, ok := g.(string); ok {
				actor.Groups = append(actor.Groups, s)
			}
		}
	}
	return actor, nil
}

// Actor returns the authenticated caller. Routes outside JWTAuth get the zero
// Actor, which no policy rule grants anything.
func Actor(c *gin.Context) policy.Actor {
	actor, _ := c.Get(ActorKey)
	a, _ := actor.(policy.Actor)
	return a
}

func abort(c *gin.Context, err error) {
	status, body, _ := apierror.Envelope(err)
	c.AbortWithStatusJSON(status, body)
}
