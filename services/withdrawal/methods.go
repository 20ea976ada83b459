package withdrawal

import (
	"regexp"
	"strings"

	"setledger/pkg/errutil"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodPayPal       Method = "paypal"
	MethodBankTransfer Method = "bank_transfer"
	MethodMobileMoney  Method = "mobile_money"
)

// PaymentDetails carries the method-specific destination fields.
type PaymentDetails map[string]string

// MethodSpec fixes the per-method payout policy: the minimum withdrawable
// amount, the flat fee, and which destination fields must be present.
type MethodSpec struct {
	Minimum  decimal.Decimal
	Fee      decimal.Decimal
	Validate func(details PaymentDetails) error
}

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)
)

var methodSpecs = map[Method]MethodSpec{
	MethodPayPal: {
		Minimum: decimal.NewFromFloat(3.00),
		Fee:     decimal.NewFromFloat(0.30),
		Validate: func(details PaymentDetails) error {
			email := strings.TrimSpace(details["email"])
			if !emailPattern.MatchString(email) {
				return errutil.ValidationFailed("valid paypal email is required", nil,
					errutil.WithDetails(errutil.Detail{Field: "email", Message: "invalid format"}))
			}
			return nil
		},
	},
	MethodBankTransfer: {
		Minimum: decimal.NewFromFloat(10.00),
		Fee:     decimal.NewFromFloat(1.00),
		Validate: func(details PaymentDetails) error {
			for _, field := range []string{"account_name", "account_number", "bank_name"} {
				if strings.TrimSpace(details[field]) == "" {
					return errutil.ValidationFailed("incomplete bank transfer details", nil,
						errutil.WithDetails(errutil.Detail{Field: field, Message: "required"}))
				}
			}
			return nil
		},
	},
	MethodMobileMoney: {
		Minimum: decimal.NewFromFloat(1.00),
		Fee:     decimal.NewFromFloat(0.10),
		Validate: func(details PaymentDetails) error {
			phone := strings.TrimSpace(details["phone"])
			if !phonePattern.MatchString(phone) {
				return errutil.ValidationFailed("valid mobile money phone number is required", nil,
					errutil.WithDetails(errutil.Detail{Field: "phone", Message: "invalid format"}))
			}
			return nil
		},
	},
}

// SpecFor resolves the payout policy for a method; ok is false for unknown
// method names.
func SpecFor(m Method) (MethodSpec, bool) {
	spec, ok := methodSpecs[m]
	return spec, ok
}
