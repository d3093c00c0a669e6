package middleware

import (
	"errors"
	"net/http"
	"strings"

	"procurement/internal/model"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by RequireRole
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
	ContextVendorID = "vendorID"
)

var (
	errMissingToken  = errors.New("authorization is missing")
	errInvalidFormat = errors.New("invalid authorization format, expected 'Bearer <token>'")
	errMissingRole   = errors.New("role not found in token")
	errMissingVendor = errors.New("vendor token must carry a valid vendor_id")
)

// Auth verifies bearer tokens issued by the identity provider with a shared HMAC secret.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

// ParseToken validates a signed token and returns the actor it describes.
func (a *Auth) ParseToken(tokenString string) (model.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return model.Actor{}, err
	}
	if !token.Valid {
		return model.Actor{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Actor{}, jwt.ErrTokenInvalidClaims
	}

	role, _ := claims["role"].(string)
	if role == "" {
		return model.Actor{}, errMissingRole
	}
	sub, _ := claims.GetSubject()
	actor := model.Actor{ID: sub, Role: role}

	if role == model.RoleVendor {
		raw, _ := claims["vendor_id"].(string)
		vendorID, err := uuid.Parse(raw)
		if err != nil {
			return model.Actor{}, errMissingVendor
		}
		actor.VendorID = &vendorID
	}
	return actor, nil
}

// tokenFromRequest reads the access_token cookie, falling back to the Authorization header.
func tokenFromRequest(c *gin.Context) (string, error) {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errMissingToken
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errInvalidFormat
	}
	return parts[1], nil
}

// RequireRole validates the JWT token and checks the user's role is in allowedRoles
func (a *Auth) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		actor, err := a.ParseToken(tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errMissingRole) || errors.Is(err, errMissingVendor) {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, response.Error(status, "Invalid token: "+err.Error()))
			return
		}

		roleAllowed := false
		for _, role := range allowedRoles {
			if actor.Role == role {
				roleAllowed = true
				break
			}
		}
		if !roleAllowed {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
			return
		}

		c.Set(ContextUserID, actor.ID)
		c.Set(ContextUserRole, actor.Role)
		if actor.VendorID != nil {
			c.Set(ContextVendorID, *actor.VendorID)
		}
		c.Next()
	}
}

// ActorFrom returns the actor stored by RequireRole. It is empty on public routes.
func ActorFrom(c *gin.Context) model.Actor {
	actor := model.Actor{
		ID:   c.GetString(ContextUserID),
		Role: c.GetString(ContextUserRole),
	}
	if v, ok := c.Get(ContextVendorID); ok {
		if vendorID, ok := v.(uuid.UUID); ok {
			actor.VendorID = &vendorID
		}
	}
	return actor
}
