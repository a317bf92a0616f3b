package credential

import (
	"crypto/rand"
	"fmt"
	"math/big"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	otpMin  = 100000
	otpSpan = 900000
)

// GenerateOTP draws a 6 digit numeric code uniformly from
// [100000, 999999] using a cryptographically secure source.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate otp")
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

// GenerateActivationToken returns an opaque single use token carrying
// uuid-class entropy, embedded in the activation link.
func GenerateActivationToken() string {
	return uuid.NewString()
}
