package supabase

import (
	"github.com/golang-jwt/jwt/v5"

	"quad/internal/auth"
)

// Claims are the access token claims issued by the auth service
type Claims struct {
	Email        string        `json:"email"`
	Role         string        `json:"role"`
	UserMetadata auth.Metadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c *Claims) toUser() auth.User {
	return auth.User{
		ID:        c.Subject,
		Email:     c.Email,
		Metadata:  c.UserMetadata,
		Confirmed: true,
	}
}

func (c *Client) parseAccessToken(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return c.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
