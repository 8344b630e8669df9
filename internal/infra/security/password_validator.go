package security

import (
	"fmt"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// passwordSymbols is the fixed set of symbols accepted by the
// registration password policy.
const passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?~` + "`"

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

// Error implements error for PasswordValidationError.
func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule validates a password according to a specific policy rule.
type PasswordRule interface {
	Validate(password string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string) error

// Validate executes the underlying rule function.
func (f PasswordRuleFunc) Validate(password string) error {
	return f(password)
}

// PasswordValidator applies a sequence of password rules.
type PasswordValidator struct {
	rules []PasswordRule
}

// NewPasswordValidator constructs a validator with the provided rules.
func NewPasswordValidator(rules ...PasswordRule) *PasswordValidator {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordValidator{rules: copied}
}

// DefaultPasswordValidator enforces the registration password policy:
// at least 8 characters with one uppercase, one lowercase, one digit,
// and one symbol from the fixed set, plus a zxcvbn strength floor.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(8),
		RequireUppercaseRule(),
		RequireLowercaseRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
		RequirePasswordStrengthRule(2),
	)
}

// Validate executes all rules and returns the first encountered violation.
func (v *PasswordValidator) Validate(password string) error {
	if v == nil {
		return fmt.Errorf("password validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(password); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule ensures the password has at least min characters.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if len([]rune(password)) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// RequireUppercaseRule ensures the password contains an uppercase letter.
func RequireUppercaseRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsUpper(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "uppercase",
			Message: "password must include at least one uppercase letter",
		}
	})
}

// RequireLowercaseRule ensures the password contains a lowercase letter.
func RequireLowercaseRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsLower(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "lowercase",
			Message: "password must include at least one lowercase letter",
		}
	})
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return &PasswordValidationError{
			Code:    "digit",
			Message: "password must include at least one digit",
		}
	})
}

// RequireSymbolRule ensures the password contains at least one symbol
// from the fixed accepted set.
func RequireSymbolRule() PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if strings.ContainsAny(password, passwordSymbols) {
			return nil
		}
		return &PasswordValidationError{
			Code:    "symbol",
			Message: "password must include at least one symbol",
		}
	})
}

// RequirePasswordStrengthRule enforces a minimum zxcvbn score to reject
// weak passwords that satisfy the character rules.
func RequirePasswordStrengthRule(minScore int, userInputs ...string) PasswordRule {
	return PasswordRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}
		if minScore > 4 {
			minScore = 4
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}
