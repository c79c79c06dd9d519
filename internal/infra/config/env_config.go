package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrInvalidConfig is returned when Parse is not given a pointer to a struct embedding EnvConfig.
	ErrInvalidConfig = errors.New("config must be a pointer to a struct embedding EnvConfig")

	// ErrVarNotSet is returned for a tagged field without a value in any namespace and no default.
	ErrVarNotSet = errors.New("env var not set")

	// ErrUnsupportedVarType is returned for tagged fields of a kind the parser cannot set.
	ErrUnsupportedVarType = errors.New("unsupported env var type")
)

// EnvConfig marks a struct as loadable by Parse.
type EnvConfig struct {
	namespace string
}

// Namespace returns the prefix the config was parsed with.
func (c *EnvConfig) Namespace() string {
	return c.namespace
}

// Parse fills cfg from the environment.
//
// Each field tagged `env:"NAME"` is looked up under the namespace, then under each
// shorter namespace obtained by dropping trailing "_" segments. With the namespace
// IMAGEKV_IMAGESVC, the field STORE_BACKEND is read from IMAGEKV_IMAGESVC_STORE_BACKEND,
// then from IMAGEKV_STORE_BACKEND, so a single IMAGEKV_* variable configures every
// binary. The `default` tag applies when no candidate is set; without one the field
// is required. Nested structs extend the name with their `envPrefix` tag.
//
// cfg must be a pointer to a struct embedding EnvConfig.
func Parse(_ context.Context, cfg any, namespace string) error {
	envConfig, err := embeddedEnvConfig(cfg)
	if err != nil {
		return fmt.Errorf("get env config: %w", err)
	}

	envConfig.namespace = namespace

	return parseStruct(envCandidates(namespace), "", reflect.ValueOf(cfg).Elem())
}

func embeddedEnvConfig(cfg any) (*EnvConfig, error) {
	ptr := reflect.ValueOf(cfg)
	if ptr.Kind() != reflect.Ptr || ptr.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidConfig
	}

	envConfigType := reflect.TypeFor[EnvConfig]()
	strct := ptr.Elem()

	for i := range strct.NumField() {
		if field := strct.Type().Field(i); field.Anonymous && field.Type == envConfigType {
			//nolint:forcetypeassert
			return strct.Field(i).Addr().Interface().(*EnvConfig), nil
		}
	}

	return nil, ErrInvalidConfig
}

// envCandidates lists the name prefixes to try, most specific first.
// The empty namespace yields a single empty prefix.
func envCandidates(namespace string) []string {
	if namespace == "" {
		return []string{""}
	}

	segments := strings.Split(namespace, "_")
	candidates := make([]string, 0, len(segments))

	for n := len(segments); n > 0; n-- {
		candidates = append(candidates, strings.Join(segments[:n], "_")+"_")
	}

	return candidates
}

func parseStruct(candidates []string, prefix string, strct reflect.Value) error {
	for i := range strct.NumField() {
		field := strct.Type().Field(i)
		value := strct.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := parseStruct(candidates, prefix+field.Tag.Get("envPrefix"), value); err != nil {
				return err
			}

			continue
		}

		name, ok := field.Tag.Lookup("env")
		if !ok || name == "" {
			continue
		}

		raw, found := lookupEnv(candidates, prefix+name)
		if !found {
			def, hasDefault := field.Tag.Lookup("default")
			if !hasDefault {
				return fmt.Errorf("parse field: %w: %s", ErrVarNotSet, candidates[0]+prefix+name)
			}

			raw = def
		}

		if err := setField(value, raw); err != nil {
			return fmt.Errorf("parse field %s: %w", prefix+name, err)
		}
	}

	return nil
}

func lookupEnv(candidates []string, name string) (string, bool) {
	for _, candidate := range candidates {
		if value, ok := os.LookupEnv(candidate + name); ok {
			return value, true
		}
	}

	return "", false
}

// setField converts raw to the field's kind, honouring its bit size.
func setField(value reflect.Value, raw string) error {
	kind := value.Kind()

	//nolint:exhaustive
	switch kind {
	case reflect.String:
		value.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, value.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}

		value.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, value.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}

		value.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, value.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}

		value.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}

		value.SetBool(b)
	default:
		return fmt.Errorf("%w: %v", ErrUnsupportedVarType, kind)
	}

	return nil
}
