package httpgin

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/kirinyoku/cineseat/internal/domain"
)

const principalKey = "principal"

// Claims is the access token payload issued by the identity service.
type Claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	BranchID *int64 `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

var errUnknownRole = errors.New("unknown role")

func (c Claims) principal() (domain.Principal, error) {
	role := domain.Role(strings.ToUpper(c.Role))
	switch role {
	case domain.RoleCustomer, domain.RoleStaff, domain.RoleManager, domain.RoleAdmin:
	default:
		return domain.Principal{}, errUnknownRole
	}

	return domain.Principal{
		UserID:   c.UserID,
		Username: c.Username,
		Role:     role,
		BranchID: c.BranchID,
	}, nil
}

// IssueToken signs an HS256 access token for p.
func IssueToken(secret string, p domain.Principal, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:   p.UserID,
		Username: p.Username,
		Role:     string(p.Role),
		BranchID: p.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// JWTAuth validates the Bearer token and stores the caller's principal on the context.
func JWTAuth(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return []byte(secret), nil }

	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		var claims Claims
		tok, err := parser.ParseWithClaims(raw, &claims, keyFunc)
		if err != nil || !tok.Valid {
			unauthorized(c, "invalid token")
			return
		}

		p, err := claims.principal()
		if err != nil {
			unauthorized(c, "invalid token: "+err.Error())
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRole rejects principals whose role is not listed.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, principal(c).Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:   string(domain.KindForbidden),
				Message: "insufficient role",
			})
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) domain.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="cineseat"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: msg})
}
