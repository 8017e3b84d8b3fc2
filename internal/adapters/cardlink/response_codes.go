package cardlink

import (
	pkgerrors "github.com/lumapay/payment-core/pkg/errors"
)

// ResponseCodeInfo contains detailed information about an acquirer response code
type ResponseCodeInfo struct {
	Code        string
	Display     string
	Description string
	IsApproved  bool
	IsRetriable bool
	Category    pkgerrors.ErrorCategory
	UserMessage string
}

var responseCodes = map[string]ResponseCodeInfo{
	"00": {
		Code:        "00",
		Display:     "APPROVAL",
		Description: "Transaction approved",
		IsApproved:  true,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Payment successful",
	},
	"05": {
		Code:        "05",
		Display:     "DECLINE",
		Description: "Do not honor",
		IsRetriable: false,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Transaction declined by your bank. Please contact your bank or use a different payment method.",
	},
	"14": {
		Code:        "14",
		Display:     "INVALID ACCT",
		Description: "Invalid card number",
		IsRetriable: false,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Invalid card number. Please check your card details.",
	},
	"41": {
		Code:        "41",
		Display:     "LOST CARD",
		Description: "Lost card, pick up",
		IsRetriable: false,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Card reported as lost. Please contact your bank.",
	},
	"43": {
		Code:        "43",
		Display:     "STOLEN CARD",
		Description: "Stolen card, pick up",
		IsRetriable: false,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Card reported as stolen. Please contact your bank.",
	},
	"51": {
		Code:        "51",
		Display:     "INSUFF FUNDS",
		Description: "Insufficient funds in account",
		IsRetriable: true,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Insufficient funds. Please use a different payment method or add funds to your account.",
	},
	"54": {
		Code:        "54",
		Display:     "EXP CARD",
		Description: "Expired card",
		IsRetriable: true,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Your card has expired. Please use a different payment method.",
	},
	"59": {
		Code:        "59",
		Display:     "SUSPECTED FRAUD",
		Description: "Suspected fraud",
		IsRetriable: false,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Transaction declined for security reasons. Please contact your bank.",
	},
	"65": {
		Code:        "65",
		Display:     "3DS FAILED",
		Description: "3-D Secure authentication failed",
		IsRetriable: true,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Card authentication failed. Please retry and complete the verification step.",
	},
	"82": {
		Code:        "82",
		Display:     "CVV ERROR",
		Description: "CVV verification failed",
		IsRetriable: true,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Incorrect CVV. Please check the security code on your card.",
	},
	"91": {
		Code:        "91",
		Display:     "TIMEOUT",
		Description: "Issuer or switch timeout",
		IsRetriable: true,
		Category:    pkgerrors.CategoryTransport,
		UserMessage: "Transaction timeout. Please try again.",
	},
	"96": {
		Code:        "96",
		Display:     "SYSTEM ERROR",
		Description: "System malfunction",
		IsRetriable: true,
		Category:    pkgerrors.CategoryTransport,
		UserMessage: "System error. Please try again in a few moments.",
	},
}

// GetResponseCode retrieves response code information, with a conservative
// default for codes not in the table
func GetResponseCode(code string) ResponseCodeInfo {
	if info, exists := responseCodes[code]; exists {
		return info
	}
	return ResponseCodeInfo{
		Code:        code,
		Display:     "UNKNOWN",
		Description: "Unknown response code",
		IsRetriable: false,
		Category:    pkgerrors.CategoryBusiness,
		UserMessage: "Transaction declined. Please try a different payment method or contact support.",
	}
}

// ToPaymentError converts a response code to a PaymentError
func (r ResponseCodeInfo) ToPaymentError(providerMessage string) *pkgerrors.PaymentError {
	return &pkgerrors.PaymentError{
		Code:            r.Code,
		Message:         r.UserMessage,
		ProviderMessage: providerMessage,
		Category:        r.Category,
		Retriable:       r.IsRetriable,
	}
}
