package handler

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/resultadmin/internal/model"
)

// FieldErrors はフォーム項目名（jsonタグ名）からエラーメッセージへの対応。
type FieldErrors map[string]string

// FormState はフォームページに渡す入力値とエラー。
type FormState struct {
	Action string
	Values any
	Errors FieldErrors
	Extra  any
}

// formValidator はvalidator/v10による入力検証を行う。
type formValidator struct {
	v *validator.Validate
}

func newFormValidator() *formValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &formValidator{v: v}
}

// Check は検証エラーを項目ごとに返す。エラーがなければnil。
func (f *formValidator) Check(in any) FieldErrors {
	err := f.v.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"_": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, exists := out[fe.Field()]; exists {
			continue
		}
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

// fieldMessage は1件の検証エラーを画面表示用の文言に変換する。
func fieldMessage(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	isText := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "email":
		return "Invalid email address"
	case "min":
		if isText {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		if isText {
			return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func parseLoginForm(r *http.Request) model.LoginInput {
	return model.LoginInput{
		Email:    formValue(r, "email"),
		Password: r.PostFormValue("password"),
	}
}

func parseFacultyForm(r *http.Request) model.FacultyInput {
	return model.FacultyInput{
		Name:         formValue(r, "name"),
		Abbreviation: strings.ToUpper(formValue(r, "abbreviation")),
	}
}

func parseDepartmentForm(r *http.Request) model.DepartmentInput {
	return model.DepartmentInput{
		Name:      formValue(r, "name"),
		FacultyID: formValue(r, "faculty_id"),
	}
}

func parseCourseForm(r *http.Request) model.CourseInput {
	return model.CourseInput{
		CourseCode:   strings.ToUpper(formValue(r, "course_code")),
		CourseTitle:  formValue(r, "course_title"),
		Unit:         model.ParseIntOrZero(formValue(r, "unit")),
		Level:        model.ParseIntOrZero(formValue(r, "level")),
		Semester:     formValue(r, "semester"),
		DepartmentID: formValue(r, "department_id"),
	}
}

func parseStudentForm(r *http.Request) model.StudentInput {
	return model.StudentInput{
		Name:          formValue(r, "name"),
		Email:         formValue(r, "email"),
		MatricNumber:  strings.ToUpper(formValue(r, "matric_number")),
		DepartmentID:  formValue(r, "department_id"),
		AdmissionYear: model.ParseIntOrZero(formValue(r, "admission_year")),
		CurrentLevel:  model.ParseIntOrZero(formValue(r, "current_level")),
		Status:        strings.ToLower(formValue(r, "status")),
	}
}
