// Package meeting resolves which meeting a panel belongs to.
package meeting

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/dgrijalva/jwt-go"

	"meetpanel/internal/models"
)

// RoomClaim is the meeting token claim that carries the meeting id.
const RoomClaim = "room"

// PathResolver takes the meeting id from the first path segment of the
// meeting page URL, e.g. https://meet.example.com/room-42/lobby -> room-42.
type PathResolver struct {
	id string
}

// NewPathResolver accepts a full URL or a bare path.
func NewPathResolver(raw string) *PathResolver {
	return &PathResolver{id: FirstSegment(raw)}
}

func (p *PathResolver) MeetingID() string { return p.id }

// FirstSegment returns the first non-empty path segment of raw, or "".
func FirstSegment(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			return seg
		}
	}
	return ""
}

// TokenResolver reads the meeting id from the room claim of a meeting JWT.
type TokenResolver struct {
	id  string
	err error
}

// NewTokenResolver parses token. With a non-empty secret the token must be a
// valid HS256 token; without one the claims are read unverified.
func NewTokenResolver(token string, secret []byte) *TokenResolver {
	id, err := RoomFromToken(token, secret)
	return &TokenResolver{id: id, err: err}
}

func (t *TokenResolver) MeetingID() string { return t.id }

// Err is the parse failure, if any.
func (t *TokenResolver) Err() error { return t.err }

// RoomFromToken extracts the room claim. Any failure wraps models.ErrUnauthorized.
func RoomFromToken(tokenStr string, secret []byte) (string, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	if tokenStr == "" {
		return "", models.ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	if len(secret) == 0 {
		if _, _, err := new(jwt.Parser).ParseUnverified(tokenStr, claims); err != nil {
			return "", fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
		}
	} else {
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return "", fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
		}
	}

	room, _ := claims[RoomClaim].(string)
	room = strings.TrimSpace(room)
	if room == "" {
		return "", fmt.Errorf("%w: missing %s claim", models.ErrUnauthorized, RoomClaim)
	}
	return room, nil
}
