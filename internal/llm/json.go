package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// extractJSON decodes the first JSON value found in a model reply into T.
// Decoding is attempted at every byte listed in openers, left to right, so
// bracketed prose ahead of the value is skipped. Markdown code fences and
// any text after the value are ignored.
func extractJSON[T any](response, openers string) (T, error) {
	var result T
	cleaned := stripFences(response)
	if cleaned == "" {
		return result, fmt.Errorf("no JSON found in response")
	}
	var lastErr error
	for i := 0; i < len(cleaned); i++ {
		if strings.IndexByte(openers, cleaned[i]) < 0 {
			continue
		}
		var candidate T
		dec := json.NewDecoder(strings.NewReader(cleaned[i:]))
		if err := dec.Decode(&candidate); err != nil {
			lastErr = err
			continue
		}
		return candidate, nil
	}
	if lastErr == nil {
		return result, fmt.Errorf("no JSON start (%s) found", openers)
	}
	return result, fmt.Errorf("decode JSON: %w", lastErr)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// validateStruct flattens validator errors into one message naming each field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("field %s failed %s (value: %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
