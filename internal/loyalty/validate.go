package loyalty

import (
	"errors"
	"math"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validation messages surfaced to staff.
const (
	msgNameRequired  = "Name is required"
	msgInvalidEmail  = "Invalid email"
	msgInvalidPhone  = "Invalid phone"
	msgInvalidInput  = "Invalid input"
	msgMissingID     = "Missing customer ID"
	msgAmountInvalid = "Amount must be greater than 0"
)

const customerInputSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"email": {"type": "string", "format": "email"},
		"phone": {"type": "string"}
	}
}`

var inputSchema = compileInputSchema()

func compileInputSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource("customer_input.json", strings.NewReader(customerInputSchema)); err != nil {
		panic("loyalty: add customer input schema: " + err.Error())
	}
	return compiler.MustCompile("customer_input.json")
}

// fieldOrder decides which message wins when several fields are invalid.
var fieldOrder = []struct {
	field   string
	message string
}{
	{"name", msgNameRequired},
	{"email", msgInvalidEmail},
	{"phone", msgInvalidPhone},
}

// normalizeInput trims every field, drops empty optional fields, and
// validates the result against the customer input schema.
func normalizeInput(in CustomerInput) (upsertPayload, error) {
	payload := upsertPayload{
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
		Phone: strings.TrimSpace(in.Phone),
	}

	doc := map[string]any{"name": payload.Name}
	if payload.Email != "" {
		doc["email"] = payload.Email
	}
	if payload.Phone != "" {
		doc["phone"] = payload.Phone
	}

	if err := inputSchema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return upsertPayload{}, &ValidationError{Message: msgInvalidInput}
		}
		failed := make(map[string]bool)
		collectFields(verr, failed)
		for _, f := range fieldOrder {
			if failed[f.field] {
				return upsertPayload{}, &ValidationError{Field: f.field, Message: f.message}
			}
		}
		return upsertPayload{}, &ValidationError{Message: msgInvalidInput}
	}
	return payload, nil
}

// collectFields records the top-level property of every leaf failure.
func collectFields(err *jsonschema.ValidationError, into map[string]bool) {
	if len(err.Causes) == 0 {
		field := strings.TrimPrefix(err.InstanceLocation, "/")
		if i := strings.IndexByte(field, '/'); i >= 0 {
			field = field[:i]
		}
		if field == "" && strings.HasSuffix(err.KeywordLocation, "/required") {
			field = "name"
		}
		into[field] = true
		return
	}
	for _, cause := range err.Causes {
		collectFields(cause, into)
	}
}

func validateID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", &ValidationError{Field: "id", Message: msgMissingID}
	}
	return trimmed, nil
}

func validateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return &ValidationError{Field: "amount", Message: msgAmountInvalid}
	}
	return nil
}
