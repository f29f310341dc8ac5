package dbconfig

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// decode applies loosely typed values (env strings, query parameters) onto cfg.
// Keys absent from values leave the corresponding fields untouched.
func decode(values map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			millisDurationHook,
			flagHook,
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(values)
}

var durationType = reflect.TypeOf(time.Duration(0))

// millisDurationHook accepts Go durations ("5s") and bare integers, which are
// read as milliseconds.
func millisDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return time.Duration(0), nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond, nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", s)
		}
		return d, nil
	case reflect.Int, reflect.Int32, reflect.Int64:
		return time.Duration(reflect.ValueOf(data).Int()) * time.Millisecond, nil
	case reflect.Float64:
		return time.Duration(data.(float64) * float64(time.Millisecond)), nil
	}
	return data, nil
}

// flagHook widens the accepted spellings of boolean flags, including the
// libpq sslmode values.
func flagHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Bool || from.Kind() != reflect.String {
		return data, nil
	}
	return parseFlag(data.(string))
}

func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "false", "f", "no", "n", "off", "disable", "disabled":
		return false, nil
	case "1", "true", "t", "yes", "y", "on", "enable", "enabled",
		"require", "required", "verify-ca", "verify-full", "prefer", "allow":
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}
