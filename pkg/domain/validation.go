package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// nowKey carries the reference time for the pastdate rule.
type nowKey struct{}

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidationCtx("pastdate", func(ctx context.Context, fl validator.FieldLevel) bool {
			dob, err := time.Parse(DateLayout, fl.Field().String())
			if err != nil {
				return false
			}
			now, ok := ctx.Value(nowKey{}).(time.Time)
			if !ok {
				now = time.Now()
			}
			return dob.Before(now)
		})
		validate = v
	})
	return validate
}

// Validate checks the profile fields against now: non-blank names, a
// YYYY-MM-DD date of birth strictly in the past, and a supported gender.
func (f ProfileFields) Validate(now time.Time) error {
	ctx := context.WithValue(context.Background(), nowKey{}, now)
	err := profileValidator().StructCtx(ctx, f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidProfile, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
}
