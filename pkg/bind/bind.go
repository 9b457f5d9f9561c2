// Package bind decodes request bodies into structs and validates them.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/farmshop/storefront/config"
	"github.com/farmshop/storefront/pkg/validate"
)

func maxBodyBytes() int64 {
	n := int64(config.Int("MAX_BODY_BYTES", 8<<20))
	if n <= 0 {
		return 8 << 20
	}
	return n
}

// JSON decodes r.Body into dest and validates it.
// Returns (errs, nil) on validation failures and (nil, err) for malformed
// or oversized bodies.
func JSON(r *http.Request, dest any) (map[string]string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes())

	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body too large (max %d bytes)", maxErr.Limit)
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}

// Form fills dest's string, integer, float and bool fields from the parsed
// form (urlencoded or multipart) using their `form` tags, then validates.
// Unparseable numbers are reported as field errors. A checkbox that is
// absent from the form binds as false.
func Form(r *http.Request, dest any) (map[string]string, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes())
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBodyBytes()); err != nil {
			return nil, fmt.Errorf("invalid form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form: %w", err)
	}

	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return nil, errors.New("bind: dest must be a pointer to a struct")
	}
	rv = rv.Elem()
	rt := rv.Type()

	errs := make(map[string]string)
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() || f.Tag.Get("form") == "" {
			continue
		}
		name := validate.FieldName(f)
		raw := strings.TrimSpace(r.Form.Get(name))
		if err := set(rv.Field(i), raw); err != nil {
			errs[name] = fmt.Sprintf("The %s must be a number.", strings.ReplaceAll(name, "_", " "))
		}
	}

	for k, v := range validate.Struct(dest) {
		if _, seen := errs[k]; !seen {
			errs[k] = v
		}
	}
	if validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}

func set(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		switch strings.ToLower(raw) {
		case "", "0", "false", "off", "n", "no":
			field.SetBool(false)
		default:
			field.SetBool(true)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if raw == "" {
			field.SetInt(0)
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if raw == "" {
			field.SetUint(0)
			return nil
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		if raw == "" {
			field.SetFloat(0)
			return nil
		}
		n, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil {
			return err
		}
		field.SetFloat(n)
	}
	return nil
}
