package dtos

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jacksonlee411/leadimport/modules/leadimport/services"
)

// validate reports fields by their JSON names so messages line up with the
// request body the client sent.
var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

type PreviewImportDTO struct {
	SpreadsheetID string            `json:"spreadsheetId" validate:"required"`
	SheetName     string            `json:"sheetName"`
	HeaderRow     int               `json:"headerRow" validate:"omitempty,min=1"`
	ColumnMapping map[string]string `json:"columnMapping"`
}

func (d *PreviewImportDTO) Ok() (map[string]string, bool) {
	return check(d)
}

func (d *PreviewImportDTO) ToParams(userID string, tenantID uuid.UUID) services.PreviewParams {
	return services.PreviewParams{
		UserID:        userID,
		TenantID:      tenantID,
		SpreadsheetID: strings.TrimSpace(d.SpreadsheetID),
		SheetName:     d.SheetName,
		HeaderRow:     d.HeaderRow,
		ColumnMapping: d.ColumnMapping,
	}
}

type ExecuteImportDTO struct {
	SpreadsheetID     string            `json:"spreadsheetId" validate:"required"`
	SheetName         string            `json:"sheetName"`
	HeaderRow         int               `json:"headerRow" validate:"omitempty,min=1"`
	ColumnMapping     map[string]string `json:"columnMapping" validate:"required,min=1"`
	DuplicateStrategy string            `json:"duplicateStrategy" validate:"omitempty,oneof=Skip Update Create"`
	DefaultSource     string            `json:"defaultSource" validate:"omitempty,oneof=Website Referral GoogleSheets Manual Advertisement Other"`
}

func (d *ExecuteImportDTO) Ok() (map[string]string, bool) {
	return check(d)
}

func (d *ExecuteImportDTO) ToParams(userID string, tenantID uuid.UUID) services.ExecuteParams {
	return services.ExecuteParams{
		UserID:            userID,
		TenantID:          tenantID,
		SpreadsheetID:     strings.TrimSpace(d.SpreadsheetID),
		SheetName:         d.SheetName,
		HeaderRow:         d.HeaderRow,
		ColumnMapping:     d.ColumnMapping,
		DuplicateStrategy: d.DuplicateStrategy,
		DefaultSource:     d.DefaultSource,
	}
}

func check(dto any) (map[string]string, bool) {
	errorMessages := map[string]string{}
	errs := validate.Struct(dto)
	if errs == nil {
		return errorMessages, true
	}
	verrs, ok := errs.(validator.ValidationErrors)
	if !ok {
		errorMessages["body"] = errs.Error()
		return errorMessages, false
	}
	for _, err := range verrs {
		errorMessages[err.Field()] = message(err)
	}
	return errorMessages, len(errorMessages) == 0
}

func message(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		if err.Kind() == reflect.Map {
			return "must contain at least " + err.Param() + " entry"
		}
		return "must be at least " + err.Param()
	case "oneof":
		return "must be one of " + strings.ReplaceAll(err.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}
