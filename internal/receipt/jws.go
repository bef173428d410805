package receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// receiptClaims is the payload of a signed receipt.
type receiptClaims struct {
	TransactionID string `json:"transaction_id"`
	ProductID     string `json:"product_id"`
	jwt.RegisteredClaims
}

// JWSVerifier accepts receipts that are HS256 JWTs signed with a shared
// key and whose transaction and product match the claim.
type JWSVerifier struct {
	key []byte
	now func() time.Time
}

func NewJWSVerifier(key []byte) *JWSVerifier {
	return &JWSVerifier{key: key, now: time.Now}
}

func (v *JWSVerifier) Verify(_ context.Context, c Claim) error {
	var claims receiptClaims
	tok, err := jwt.ParseWithClaims(c.Receipt, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(v.now))
	if err != nil || !tok.Valid {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.TransactionID != c.TransactionID {
		return fmt.Errorf("%w: transaction mismatch", ErrInvalid)
	}
	if claims.ProductID != c.ProductID {
		return fmt.Errorf("%w: product mismatch", ErrInvalid)
	}
	return nil
}

// Sign issues a receipt for the given purchase, valid for ttl.
func (v *JWSVerifier) Sign(transactionID, productID string, ttl time.Duration) (string, error) {
	now := v.now().UTC()
	claims := receiptClaims{
		TransactionID: transactionID,
		ProductID:     productID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}
