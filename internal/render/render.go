// Package render fills message templates with per-recipient variables.
package render

import (
	"regexp"

	"github.com/herald/herald/internal/model"
)

// Reserved variable names. They always win over extra attributes with the same key.
const (
	VarFirstName = "first_name"
	VarLastName  = "last_name"
	VarFullName  = "full_name"
	VarEmail     = "email"
	VarPhone     = "phone"
)

var placeholder = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Render replaces every {{name}} whose value is present and non-empty. Other
// placeholders are kept literally. Replacement is a single pass, so values that
// themselves look like placeholders are not expanded again.
func Render(template string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		name := match[2 : len(match)-2]
		if v := vars[name]; v != "" {
			return v
		}
		return match
	})
}

// Variables returns the substitution map for a recipient
func Variables(r *model.Recipient) map[string]string {
	vars := make(map[string]string, len(r.Extra)+5)
	for k, v := range r.Extra {
		vars[k] = v
	}
	vars[VarFirstName] = r.FirstName
	vars[VarLastName] = r.LastName
	vars[VarFullName] = r.FullName()
	vars[VarEmail] = r.EmailAddress()
	vars[VarPhone] = r.PhoneNumber()
	return vars
}

// ForRecipient renders template for r
func ForRecipient(template string, r *model.Recipient) string {
	return Render(template, Variables(r))
}
