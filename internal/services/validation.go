package services

import (
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// moneyPattern accepts plain decimals with up to two places: "10",
// "10.5", "10.50".
var moneyPattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// maxWithdrawAmount is a defensive upper bound on a single withdrawal.
const maxWithdrawAmount = 1_000_000

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper with the custom
// money rule registered.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("money", validMoney)
	return &ValidationHelper{validator: v}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// validMoney enforces the decimal-string amount format: positive, at
// most two decimal places, within the defensive limit.
func validMoney(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if !moneyPattern.MatchString(raw) {
		return false
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return false
	}
	return amount > 0 && amount <= maxWithdrawAmount
}
