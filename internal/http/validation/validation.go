package validation

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/studyhub-backend/internal/domain/academic"
)

var once sync.Once

// Register installs the custom binding tags on gin's validator:
//
//	hexcolor6  "#RRGGBB"
//	hhmm       24h "HH:MM"
//	weekday    0 (Sunday) to 6
func Register() {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
			return academic.IsHexColor(fl.Field().String())
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, ok := academic.ParseClock(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
			return academic.IsWeekday(int(fl.Field().Int()))
		})
	})
}

// Message flattens binding errors into one line per field.
func Message(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		if err == nil {
			return "invalid request"
		}
		return err.Error()
	}
	out := ""
	for i, fe := range verrs {
		if i > 0 {
			out += "; "
		}
		out += fe.Field() + " failed " + fe.Tag()
		if fe.Param() != "" {
			out += "=" + fe.Param()
		}
	}
	return out
}
