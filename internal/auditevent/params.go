package auditevent

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Machine-readable codes for request parameter violations.
const (
	CodeInvalidOffset       = "invalid_offset"
	CodeOffsetFromSpecified = "offset_from_specified"
	CodeInvalidTimeInterval = "invalid_time_interval"
	CodeNotPositiveLimit    = "not_positive_limit"
	CodeNotMatchingType     = "not_matching_eventtype"
)

var eventTypeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z_]*$`)

// ValidationError describes a single invalid request parameter.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ListParams are the caller-supplied paging and filtering parameters.
// Offset-based and time-based navigation are mutually exclusive.
type ListParams struct {
	Limit  int
	Offset string
	From   *time.Time
	To     *time.Time
	Type   string
}

// Validate checks the parameter rules and reports the first violation.
// It must be called before any store access.
func (p ListParams) Validate() *ValidationError {
	if p.Offset != "" {
		if _, err := uuid.Parse(p.Offset); err != nil {
			return &ValidationError{
				Field:   "offset",
				Code:    CodeInvalidOffset,
				Message: "invalid offset",
			}
		}
	}

	if p.Offset != "" && p.From != nil {
		return &ValidationError{
			Field:   "offset",
			Code:    CodeOffsetFromSpecified,
			Message: `offset and time interval param "from" cannot be specified at once`,
		}
	}

	if p.From != nil && p.To != nil && !p.From.Before(*p.To) {
		return &ValidationError{
			Field:   "from",
			Code:    CodeInvalidTimeInterval,
			Message: `"from" must be before "to"`,
		}
	}

	if p.Limit <= 0 {
		return &ValidationError{
			Field:   "limit",
			Code:    CodeNotPositiveLimit,
			Message: "limit parameter must be a positive number",
		}
	}

	if p.Type != "" && !eventTypeRe.MatchString(p.Type) {
		return &ValidationError{
			Field:   "type",
			Code:    CodeNotMatchingType,
			Message: fmt.Sprintf(`"type" does not match %s`, eventTypeRe.String()),
		}
	}

	return nil
}

// query translates validated parameters into store query bounds.
func (p ListParams) query(userLogin string) Query {
	q := Query{
		Limit:     p.Limit,
		Type:      p.Type,
		UserLogin: userLogin,
	}

	if p.Offset != "" {
		id := uuid.MustParse(p.Offset) // validated above
		q.After = &id
	}
	if p.From != nil {
		id := CursorFromTime(*p.From)
		q.FromID = &id
	}
	if p.To != nil {
		id := CursorFromTime(*p.To)
		q.ToID = &id
	}
	return q
}
