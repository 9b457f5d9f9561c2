package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/farmshop/storefront/config"
	"github.com/golang-jwt/jwt/v5"
)

// CheckoutClaims binds a payment redirect to one order and its owner.
type CheckoutClaims struct {
	OrderID uint `json:"oid"`
	UserID  uint `json:"uid"`
	jwt.RegisteredClaims
}

var ErrStateMismatch = errors.New("auth: checkout state does not match order")

const checkoutIssuer = "farmshop-checkout"

func secret() []byte {
	return []byte(config.AppKey())
}

// IssueCheckoutState signs a short-lived token that travels through the
// processor's success redirect and comes back on the callback.
func IssueCheckoutState(orderID, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := CheckoutClaims{
		OrderID: orderID,
		UserID:  userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    checkoutIssuer,
			Subject:   strconv.FormatUint(uint64(orderID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret())
}

// VerifyCheckoutState parses token and checks that it was issued for
// orderID and userID.
func VerifyCheckoutState(token string, orderID, userID uint) error {
	claims := &CheckoutClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(checkoutIssuer),
	)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	if claims.OrderID != orderID || claims.UserID != userID {
		return ErrStateMismatch
	}
	return nil
}
