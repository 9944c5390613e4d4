package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"go-insights-pipeline/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// LoadJobSpec reads a job spec from a .json, .yaml or .yml file and validates it
func LoadJobSpec(path string) (model.PipelineJobSpec, error) {
	var spec model.PipelineJobSpec

	data, err := os.ReadFile(path)
	if err != nil {
		return spec, fmt.Errorf("failed to read job spec: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &spec)
	default:
		err = yaml.Unmarshal(data, &spec)
	}
	if err != nil {
		return spec, fmt.Errorf("failed to parse job spec %s: %w", path, err)
	}

	if err := ValidateJobSpec(spec); err != nil {
		return spec, err
	}
	return spec, nil
}

// ValidateJobSpec checks the validate struct tags of spec
func ValidateJobSpec(spec model.PipelineJobSpec) error {
	if err := validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid job spec: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid job spec: %w", err)
	}
	return nil
}
