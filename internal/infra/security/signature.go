package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex-encoded HMAC-SHA256 of message under secret.
func Sign(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the HMAC-SHA256 of message under secret.
// The comparison runs in constant time over the decoded digests. An empty
// secret never verifies.
func Verify(secret, message []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), got)
}

// PaymentMessage is the payload the gateway signs for a client-side checkout:
// "<order_id>|<payment_id>".
func PaymentMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

// VerifyPayment checks a checkout signature over order and payment ids.
func VerifyPayment(secret, orderID, paymentID, signature string) bool {
	return Verify([]byte(secret), PaymentMessage(orderID, paymentID), signature)
}
