package echoapi

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/masomo-fees/core"
	"github.com/trezcool/masomo-fees/core/user"
)

const (
	tokenContextKey = "userToken"
	contextUserKey  = "user"
	tokenCookieName = "token"
)

// Claims represents the authorization claims transmitted via a JWT.
// Tokens are issued by the school's identity service; this API only verifies them.
type Claims struct {
	jwt.StandardClaims
	Username   string      `json:"username,omitempty"`
	Email      string      `json:"email,omitempty"`
	Roles      []user.Role `json:"roles,omitempty"`
	StudentIDs []string    `json:"student_ids,omitempty"`
}

func (c Claims) User() user.User {
	return user.User{
		ID:         c.Subject,
		Username:   c.Username,
		Email:      c.Email,
		Roles:      c.Roles,
		StudentIDs: c.StudentIDs,
	}
}

// newJWTConfig returns the JWT auth middleware config.
func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    tokenContextKey,
		Claims:        new(Claims),
	}
}

// tokenFromCookie lets browser sessions authenticate with the token cookie
// when no Authorization header is sent.
func tokenFromCookie(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		req := ctx.Request()
		if req.Header.Get(echo.HeaderAuthorization) == "" {
			if cookie, err := req.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
				req.Header.Set(echo.HeaderAuthorization, middleware.DefaultJWTConfig.AuthScheme+" "+cookie.Value)
			}
		}
		return next(ctx)
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// contextUserMiddleware stores the caller described by the verified token in the context.
func contextUserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		if claims.Subject == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
		}
		ctx.Set(contextUserKey, claims.User())
		return next(ctx)
	}
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
