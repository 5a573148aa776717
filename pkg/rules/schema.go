package rules

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateNew checks a rule before it is submitted for creation.
func ValidateNew(rule Rule) error {
	if rule.ID != "" {
		return &ValidationError{
			Field:   fieldRuleID,
			Message: "must be empty; the manager assigns rule ids",
		}
	}
	return validateConditions(rule)
}

// ValidatePersisted checks a rule returned by the manager.
func ValidatePersisted(rule Rule) error {
	if rule.ID == "" {
		return &ValidationError{
			Field:   fieldRuleID,
			Message: "persisted rule has no id",
		}
	}
	return validateConditions(rule)
}

func validateConditions(rule Rule) error {
	for name, conds := range rule.Conditions {
		if name == "" || name == fieldRuleID || name == fieldRuleExpires {
			return &ValidationError{
				Field:   name,
				Message: "invalid condition list name",
			}
		}
		for i, c := range conds {
			if c.Kind == "" {
				return &ValidationError{
					Field:   fmt.Sprintf("%s[%d]", name, i),
					Message: "condition kind is required",
				}
			}
		}
	}
	return nil
}
