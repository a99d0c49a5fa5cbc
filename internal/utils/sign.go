package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"loan-service/internal/models"
)

// ReceiptHMAC generates the tamper-evidence stamp for a receipt
func ReceiptHMAC(receipt *models.Receipt, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%s|%d|%d|%s|%s",
		receipt.ID, receipt.LoanID, receipt.PaymentNumber,
		receipt.Amount.StringFixed(2), receipt.RemainingBalance.StringFixed(2))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyReceiptHMAC checks a receipt's stamp against the expected value
func VerifyReceiptHMAC(receipt *models.Receipt, secret string) bool {
	expected := ReceiptHMAC(receipt, secret)
	return hmac.Equal([]byte(expected), []byte(receipt.HMAC))
}
