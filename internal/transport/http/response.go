package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"elearn-progress-service/internal/domain"
	"elearn-progress-service/internal/logger"
	"github.com/go-playground/validator/v10"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names so field errors line up with the payload the client sent
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a domain error kind to its status. Internal details are logged, never returned.
func writeError(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	kind := domain.KindOf(err)
	detail := errorDetail{Kind: kind.String(), Message: err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		detail.Message = de.Message
		detail.Fields = de.Fields
	}
	if kind == domain.KindInternal {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		detail.Message = "internal server error"
		detail.Fields = nil
	}
	writeJSON(w, statusFor(kind), errorBody{Error: detail})
}

// decode reads an optional JSON body into dst and runs struct validation on it.
func decode(r *http.Request, v *validator.Validate, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewValidationError(map[string]string{"body": "malformed JSON"})
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = validationMessage(fe)
		}
		return domain.NewValidationError(fields)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
