package events

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/sells-group/bulletin-cli/internal/model"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Rejected is an extracted event that failed validation.
type Rejected struct {
	Record model.EventRecord
	Err    error
}

// Validate splits records into those that pass validation and those that
// do not. Invalid records never reach the persisted set.
func Validate(records []model.EventRecord) ([]model.EventRecord, []Rejected) {
	v := validatorInstance()

	valid := make([]model.EventRecord, 0, len(records))
	var rejected []Rejected
	for _, r := range records {
		if err := v.Struct(r); err != nil {
			rejected = append(rejected, Rejected{
				Record: r,
				Err:    eris.Wrapf(err, "events: invalid event %q", r.Title),
			})
			continue
		}
		valid = append(valid, r)
	}
	return valid, rejected
}
