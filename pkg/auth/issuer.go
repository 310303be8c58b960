package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/jwa"
	"github.com/lestrrat-go/jwx/jwt"
	"github.com/pkg/errors"
)

// TokenTTL is how long locally issued tokens stay valid.
const TokenTTL = 24 * time.Hour

// IssueToken signs a short-lived HS256 token for a locally authenticated
// user. Hosted deployments never call this; their tokens come from the
// identity provider.
func IssueToken(userID uuid.UUID, jwtSecret []byte) (string, error) {
	if len(jwtSecret) == 0 {
		return "", ErrInvalidJWTKey
	}

	token := jwt.New()
	now := time.Now()
	for key, value := range map[string]interface{}{
		jwt.SubjectKey:    userID.String(),
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: now.Add(TokenTTL),
	} {
		if err := token.Set(key, value); err != nil {
			return "", errors.Wrapf(err, "failed to set claim %s", key)
		}
	}

	signed, err := jwt.Sign(token, jwa.HS256, jwtSecret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return string(signed), nil
}
