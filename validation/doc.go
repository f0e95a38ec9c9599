// Package validation checks configuration and registration input.
//
// Struct tags are evaluated by go-playground/validator:
//
//	type ServiceInstance struct {
//	    Name string `json:"name" validate:"required"`
//	    Port int    `json:"port" validate:"min=1,max=65535"`
//	}
//	err := validation.Validate(inst)
//
// Rules that span several fields are collected with a Validator:
//
//	v := validation.New()
//	v.Custom(cfg.Timeout <= cfg.Interval, "timeout", "must not exceed interval")
//	err := v.Validate()
//
// Both paths return *errors.AppError with code INVALID_INPUT and a "fields"
// detail listing each offending field.
package validation
