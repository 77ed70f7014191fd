package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

// normalizer is implemented by request types that trim or fold input before
// it is validated.
type normalizer interface {
	Normalize()
}

// BindJSON decodes the body into out, rejects keys out does not declare,
// normalizes and validates it. On failure the 400 has been written and false
// is returned.
func BindJSON(ctx *gin.Context, v *validator.Validate, out interface{}) bool {
	raw, err := ctx.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondPayloadTooLarge(ctx)
			return false
		}
		RespondBadRequest(ctx, "Invalid request body", gin.H{"reason": err.Error()})
		return false
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		RespondBadRequest(ctx, "Invalid request body", parseBindError(err, out))
		return false
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err == nil {
		names := make([]string, 0, len(keys))
		for k := range keys {
			names = append(names, k)
		}
		if unknown := unknownFields(baseStructType(out), "json", names); len(unknown) > 0 {
			RespondFieldErrors(ctx, "Invalid request body", unknown)
			return false
		}
	}

	return validate(ctx, v, out, "Invalid request body")
}

// BindQuery maps the query string onto out's form tags with the same
// strictness as BindJSON.
func BindQuery(ctx *gin.Context, v *validator.Validate, out interface{}) bool {
	query := ctx.Request.URL.Query()
	rootType := baseStructType(out)

	names := make([]string, 0, len(query))
	for k := range query {
		names = append(names, k)
	}
	if unknown := unknownFields(rootType, "form", names); len(unknown) > 0 {
		RespondFieldErrors(ctx, "Invalid query parameters", unknown)
		return false
	}

	// one key at a time so a conversion failure names its parameter
	var typeErrs []FieldError
	for _, name := range sortedKeys(query) {
		if err := binding.MapFormWithTag(out, url.Values{name: query[name]}, "form"); err != nil {
			typeErrs = append(typeErrs, FieldError{
				Field:   name,
				Rule:    "type",
				Message: "must be an integer",
			})
		}
	}
	if len(typeErrs) > 0 {
		RespondFieldErrors(ctx, "Invalid query parameters", typeErrs)
		return false
	}

	return validate(ctx, v, out, "Invalid query parameters")
}

func validate(ctx *gin.Context, v *validator.Validate, out interface{}, message string) bool {
	if n, ok := out.(normalizer); ok {
		n.Normalize()
	}

	if err := v.Struct(out); err != nil {
		RespondBadRequest(ctx, message, parseBindError(err, out))
		return false
	}

	return true
}

// unknownFields returns one error per key that has no matching tag on the
// struct, in key order.
func unknownFields(rootType reflect.Type, tag string, keys []string) []FieldError {
	if rootType == nil {
		return nil
	}

	known := make(map[string]struct{}, rootType.NumField())
	for i := 0; i < rootType.NumField(); i++ {
		sf := rootType.Field(i)
		name := sf.Name
		if tag == "json" {
			name = jsonNameFromStructField(sf)
		} else if t, _, _ := strings.Cut(sf.Tag.Get(tag), ","); t != "" {
			name = t
		}
		known[name] = struct{}{}
	}

	sort.Strings(keys)

	var out []FieldError
	for _, k := range keys {
		if _, ok := known[k]; !ok {
			out = append(out, FieldError{
				Field:   k,
				Rule:    "unknown",
				Message: validationMessage("unknown", ""),
			})
		}
	}
	return out
}

func sortedKeys(values url.Values) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseBindError(err error, out interface{}) interface{} {
	rootType := baseStructType(out)

	// validator errors (struct bind tags)

	var validatorError validator.ValidationErrors

	if errors.As(err, &validatorError) {
		fields := make([]FieldError, 0, len(validatorError))

		for _, fieldError := range validatorError {
			field := jsonPathFromValidatorError(rootType, fieldError)
			rule := fieldError.Tag()
			param := fieldError.Param()

			fields = append(fields, FieldError{
				Field:   field,
				Rule:    rule,
				Param:   param,
				Message: validationMessage(rule, param),
			})
		}
		return gin.H{"fields": fields}
	}

	// in the event of bad json

	var syntaxError *json.SyntaxError

	if errors.As(err, &syntaxError) {
		return gin.H{
			"json": "invalid_json_syntax",
		}
	}

	// in the event of a type mismatch

	var unmatchedTypeError *json.UnmarshalTypeError

	if errors.As(err, &unmatchedTypeError) {
		field := jsonPathFromDotPath(rootType, unmatchedTypeError.Field)

		if field == "" {
			field = strings.TrimSpace(unmatchedTypeError.Field)
		}

		return gin.H{
			"json":  "invalid_json_type",
			"field": field,
			"fields": []FieldError{
				{
					Field:   field,
					Rule:    "type",
					Message: fmt.Sprintf("must be of type %s", unmatchedTypeError.Type.String()),
				},
			},
		}
	}

	// final fallback if the error could not be deciphered
	return gin.H{"reason": err.Error()}
}

func baseStructType(v interface{}) reflect.Type {
	t := reflect.TypeOf(v)

	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t != nil && t.Kind() == reflect.Struct {
		return t
	}

	return nil
}

func jsonPathFromValidatorError(rootType reflect.Type, fieldError validator.FieldError) string {
	// Namespace format is usually "<StructName>.<Field>[.<NestedField>...]".
	namespace := fieldError.StructNamespace()
	if namespace == "" {
		namespace = fieldError.Namespace()
	}

	if namespace == "" {
		return fieldError.Field()
	}

	parts := strings.Split(namespace, ".")
	if len(parts) == 0 {
		return fieldError.Field()
	}

	if rootType != nil && rootType.Name() != "" && parts[0] == rootType.Name() {
		parts = parts[1:]
	}

	path := mapStructPathToJSONPath(rootType, parts)
	if path != "" {
		return path
	}

	return fieldError.Field()
}

func jsonPathFromDotPath(rootType reflect.Type, dotPath string) string {
	dotPath = strings.TrimSpace(dotPath)
	if dotPath == "" {
		return ""
	}

	return mapStructPathToJSONPath(rootType, strings.Split(dotPath, "."))
}

func mapStructPathToJSONPath(rootType reflect.Type, parts []string) string {
	if len(parts) == 0 {
		return ""
	}

	current := rootType
	out := make([]string, 0, len(parts))

	for _, rawPart := range parts {
		if rawPart == "" {
			continue
		}

		fieldName, indexSuffix := splitFieldIndex(rawPart)
		jsonName := fieldName

		nextType := reflect.Type(nil)
		if current != nil {
			for current.Kind() == reflect.Pointer {
				current = current.Elem()
			}

			if current.Kind() == reflect.Struct {
				if sf, ok := current.FieldByName(fieldName); ok {
					jsonName = jsonNameFromStructField(sf)
					nextType = sf.Type
				}
			}
		}

		out = append(out, jsonName+indexSuffix)

		if nextType != nil {
			current = unwindCollection(nextType)
		} else {
			current = nil
		}
	}

	return strings.Join(out, ".")
}

func splitFieldIndex(part string) (string, string) {
	idx := strings.Index(part, "[")
	if idx == -1 {
		return part, ""
	}

	return part[:idx], part[idx:]
}

func jsonNameFromStructField(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" {
		return sf.Name
	}

	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return sf.Name
	}

	return name
}

func unwindCollection(t reflect.Type) reflect.Type {
	for t != nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array:
			t = t.Elem()
		default:
			return t
		}
	}

	return nil
}

func validationMessage(rule, param string) string {
	switch rule {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + param
	case "max":
		return "must be at most " + param
	case "len":
		return "must be exactly " + param
	case "oneof":
		return "must be one of " + strings.ReplaceAll(param, " ", ", ")
	case "personname":
		return "may only contain letters and spaces"
	case "strongpassword":
		return "must contain at least one uppercase letter, one lowercase letter and one number"
	case "phone":
		return "must be a valid phone number"
	case "isodate":
		return "must be a valid date (YYYY-MM-DD)"
	case "past":
		return "cannot be in the future"
	case "unknown":
		return "is not allowed"
	default:
		if param != "" {
			return fmt.Sprintf("failed %s validation (%s)", rule, param)
		}
		return "failed " + rule + " validation"
	}
}
