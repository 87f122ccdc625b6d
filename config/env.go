package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// ErrNotPointer is returned when SetConfigFromEnvVars receives a non-pointer value.
var ErrNotPointer = errors.New("config must be a pointer to a struct")

// GetenvOrDefault returns the value of the environment variable named by key,
// or defaultValue when the variable is unset, empty or whitespace-only.
func GetenvOrDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}

	return defaultValue
}

// GetenvIntOrDefault returns the integer value of the environment variable
// named by key, or defaultValue when the variable is unset or not an integer.
func GetenvIntOrDefault(key string, defaultValue int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// GetenvBoolOrDefault returns the boolean value of the environment variable
// named by key, or defaultValue when the variable is unset or not a boolean.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}

	return value
}

// SetConfigFromEnvVars populates the struct pointed to by target from
// environment variables named by `env:"..."` struct tags. Fields whose
// variables are unset keep their zero value. Supported field kinds are
// string, bool and the integer kinds.
func SetConfigFromEnvVars(target any) error {
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return ErrNotPointer
	}

	structValue := value.Elem()
	structType := structValue.Type()

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)

		envName, ok := field.Tag.Lookup("env")
		if !ok || envName == "" {
			continue
		}

		raw, ok := os.LookupEnv(envName)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		if err := setField(structValue.Field(i), field.Name, raw); err != nil {
			return err
		}
	}

	return nil
}

func setField(field reflect.Value, name, raw string) error {
	if !field.CanSet() {
		return fmt.Errorf("cannot set field %s", name)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		parsed, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}

		field.SetBool(parsed)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}

		field.SetInt(parsed)
	default:
		return fmt.Errorf("field %s: unsupported kind %s", name, field.Kind())
	}

	return nil
}
