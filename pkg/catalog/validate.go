package catalog

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ruleValidate *validator.Validate

	ruleNameRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	checksumRegexp = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)
)

func init() {
	ruleValidate = validator.New(validator.WithRequiredStructEnabled())

	_ = ruleValidate.RegisterValidation("semver", validateSemver)
	_ = ruleValidate.RegisterValidation("rulename", validateRuleName)
	_ = ruleValidate.RegisterValidation("category", validateCategory)
	_ = ruleValidate.RegisterValidation("relpath", validateRelPath)
	_ = ruleValidate.RegisterValidation("checksum", validateChecksum)
}

// ValidateRule checks a rule's fields. Dependency and conflict references
// are not resolved here; see [Snapshot.UnknownReferences].
func ValidateRule(r *Rule) error {
	err := ruleValidate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate rule %q: %w", r.Name, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}

	return &InvalidRuleError{Name: r.Name, Reasons: msgs}
}

// InvalidRuleError is returned when a rule does not pass validation.
type InvalidRuleError struct {
	Name    string
	Reasons []string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.Name, strings.Join(e.Reasons, "; "))
}

func (e *InvalidRuleError) Unwrap() error {
	return ErrInvalidRule
}

func validateSemver(fl validator.FieldLevel) bool {
	return ValidVersion(fl.Field().String())
}

func validateRuleName(fl validator.FieldLevel) bool {
	return ruleNameRegexp.MatchString(fl.Field().String())
}

func validateCategory(fl validator.FieldLevel) bool {
	return slices.Contains(AllCategories, Category(fl.Field().String()))
}

// validateRelPath rejects absolute paths and paths escaping the rules directory.
func validateRelPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return false
	}

	clean := path.Clean(p)

	return clean != ".." && !strings.HasPrefix(clean, "../")
}

func validateChecksum(fl validator.FieldLevel) bool {
	return checksumRegexp.MatchString(fl.Field().String())
}
