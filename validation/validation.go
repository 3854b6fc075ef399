package validation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/payload"
)

type Validator struct {
	validator *validator.Validate
	logger    logger.Logger
	rules     map[string]rule
}

// rule is a custom validation tag and the error reported when it fails.
type rule struct {
	check validator.Func
	err   error
}

func New(logger logger.Logger) (*Validator, error) {
	v := &Validator{validator: validator.New(), logger: logger}
	v.validator.RegisterTagNameFunc(useJSONFieldNames)

	v.rules = map[string]rule{
		"abs_path":      {check: v.isAbsolutePath, err: errors.New("path must be absolute")},
		"existing_path": {check: v.pathExists, err: errors.New("path does not exist")},
		"payload_path":  {check: v.isPayloadPath, err: errors.New("path must be a directory or a searchindex.js or searchindex.json file")},
		"valid_query":   {check: v.isValidQuery, err: errors.New("invalid query")},
		"valid_mode":    {check: v.isValidMode, err: errors.New("invalid mode, expected 'and' or 'or'")},
	}
	for tag, r := range v.rules {
		if err := v.validator.RegisterValidation(tag, r.check); err != nil {
			logger.Error("failed to register validation tag", "tag", tag, "err", err.Error())
			return nil, err
		}
	}

	return v, nil
}

// Validate checks i against its validate tags and reports the first failing
// field.
func (v *Validator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}
	v.logger.Warn("validation failed", "err", err.Error())

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	return v.describe(fieldErrs[0])
}

func (v *Validator) describe(fieldErr validator.FieldError) error {
	if r, ok := v.rules[fieldErr.Tag()]; ok {
		return r.err
	}

	switch fieldErr.Tag() {
	case "required":
		return fmt.Errorf("missing required field '%s'", fieldErr.Field())
	case "min", "max":
		return fmt.Errorf("value or length of field '%s' is not in the expected range", fieldErr.Field())
	}
	return fmt.Errorf("field '%s' failed the '%s' check", fieldErr.Field(), fieldErr.Tag())
}

func useJSONFieldNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func (v *Validator) isAbsolutePath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if strings.ContainsRune(path, 0) || !filepath.IsAbs(path) {
		v.logger.Warn("path is not absolute", "path", path)
		return false
	}
	return true
}

func (v *Validator) pathExists(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if _, err := os.Stat(path); err != nil {
		v.logger.Info("path does not exist", "path", path)
		return false
	}
	return true
}

// isPayloadPath accepts a directory to search, or the payload file itself.
func (v *Validator) isPayloadPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() || payload.IsPayloadFile(path) {
		return true
	}
	v.logger.Warn("path is neither a directory nor a payload file", "path", path)
	return false
}

func (v *Validator) isValidQuery(fl validator.FieldLevel) bool {
	query := fl.Field().String()
	if strings.TrimSpace(query) == "" {
		v.logger.Warn("query is empty", "query", query)
		return false
	}
	return true
}

func (v *Validator) isValidMode(fl validator.FieldLevel) bool {
	mode := fl.Field().String()
	if _, err := termindex.ParseMode(mode); err != nil {
		v.logger.Warn("invalid query mode", "mode", mode)
		return false
	}
	return true
}
