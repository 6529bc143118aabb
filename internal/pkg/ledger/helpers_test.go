package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const testSecret = "whsec_0123456789abcdefABCDEF"

// signPayload builds a Stripe-Signature header for payload at ts.
func signPayload(secret string, payload []byte, ts time.Time) string {
	unix := ts.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.", unix)))
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

func invoiceEvent(eventID, eventType, invoiceID string, extra string) []byte {
	if extra != "" {
		extra = "," + extra
	}
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"api_version":"2020-08-27","data":{"object":{"id":%q,"object":"invoice","customer":"cus_1","currency":"usd"%s}}}`,
		eventID, eventType, invoiceID, extra))
}
