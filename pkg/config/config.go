// Package config loads configuration structs from YAML files and
// environment variables using `env`, `yaml`, `default` and `required`
// struct tags. Environment variables always win over file values.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator allows config structs to implement custom validation logic.
// When implemented, Validate is called automatically after loading.
type Validator interface {
	Validate() error
}

// Load populates dest from the YAML file at path (if non-empty), then
// overlays environment variables. When allowFileErrors is true a missing
// or unparsable file falls back to environment variables only.
func Load[T any](dest *T, path string, allowFileErrors bool) error {
	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
		if err == nil {
			err = yaml.Unmarshal(data, dest)
		}
		if err != nil && !allowFileErrors {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	return LoadFromEnv(dest)
}

// LoadFromEnv populates dest from environment variables only, applying
// `default` values and checking `required` fields afterwards.
func LoadFromEnv[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()

	fromEnv, err := overlayEnv(val)
	if err != nil {
		return err
	}
	if err := finalize(val, fromEnv); err != nil {
		// Reset to zero value so a half-populated config cannot leak out.
		val.Set(reflect.Zero(val.Type()))
		return err
	}

	if v, ok := any(*dest).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// overlayEnv walks the struct recursively and sets fields whose `env`
// variable is present. It returns the set of fields that came from the
// environment, keyed by struct type + field name.
func overlayEnv(val reflect.Value) (map[string]bool, error) {
	typeOfT := val.Type()
	fromEnv := make(map[string]bool)

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typeOfT.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			nested, err := overlayEnv(field)
			if err != nil {
				return nil, err
			}
			for k := range nested {
				fromEnv[k] = true
			}
			continue
		}

		tag := fieldType.Tag.Get("env")
		if tag == "" {
			continue
		}
		envVal := os.Getenv(tag)
		if envVal == "" {
			continue
		}

		if err := setField(field, envVal); err != nil {
			return nil, fmt.Errorf("env %s: %w", tag, err)
		}
		fromEnv[typeOfT.Name()+"."+fieldType.Name] = true
	}
	return fromEnv, nil
}

// finalize applies `default` tags to unset fields and reports missing
// `required` fields, aggregating all problems into one error.
func finalize(val reflect.Value, fromEnv map[string]bool) error {
	typeOfT := val.Type()
	var result error

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typeOfT.Field(i)

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := finalize(field, fromEnv); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		defaultTag := fieldType.Tag.Get("default")
		required := isTagTrue(fieldType.Tag.Get("required")) && defaultTag == ""

		if field.IsZero() && required {
			result = multierror.Append(result, fmt.Errorf(
				"required field env:%s / yaml:%s is missing",
				fieldType.Tag.Get("env"), fieldType.Tag.Get("yaml")))
			continue
		}

		fieldKey := typeOfT.Name() + "." + fieldType.Name
		if field.IsZero() && defaultTag != "" && !fromEnv[fieldKey] {
			if err := setField(field, defaultTag); err != nil {
				result = multierror.Append(result, fmt.Errorf("default for %s: %w", fieldType.Name, err))
			}
		}
	}
	return result
}

// setField parses raw into the field according to its kind.
func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid int %q: %w", raw, err)
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", raw, err)
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool %q: %w", raw, err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

func isTagTrue(tag string) bool {
	tag = strings.ToLower(tag)
	return tag == "true" || tag == "1"
}
