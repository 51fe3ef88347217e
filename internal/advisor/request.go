package advisor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DateLayout            = "2006-01-02"
	DefaultInitialCapital = 100000.0
	DefaultNumOfNews      = 5
)

var validate = validator.New()

// Request carries the inputs of one recommendation.
type Request struct {
	Ticker         string  `validate:"required"`
	ShowReasoning  bool
	InitialCapital float64 `validate:"gt=0"`
	// Shares already held; sells are capped at this amount.
	Stock     int    `validate:"gte=0"`
	NumOfNews int    `validate:"gte=1,lte=100"`
	StartDate string `validate:"datetime=2006-01-02"`
	EndDate   string `validate:"datetime=2006-01-02"`
}

// Prepare fills defaults relative to now and validates the request.
// The end date defaults to yesterday, the start date to one year before it.
func (r *Request) Prepare(now time.Time) error {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if r.InitialCapital == 0 {
		r.InitialCapital = DefaultInitialCapital
	}
	if r.NumOfNews == 0 {
		r.NumOfNews = DefaultNumOfNews
	}

	if r.EndDate == "" {
		r.EndDate = now.AddDate(0, 0, -1).Format(DateLayout)
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return fmt.Errorf("invalid request: EndDate %q must use format YYYY-MM-DD", r.EndDate)
	}
	if r.StartDate == "" {
		r.StartDate = end.AddDate(-1, 0, 0).Format(DateLayout)
	}
	if err := r.validate(); err != nil {
		return err
	}

	start, _ := time.Parse(DateLayout, r.StartDate)
	if start.After(end) {
		return fmt.Errorf("start date %s is after end date %s", r.StartDate, r.EndDate)
	}
	return nil
}

func (r *Request) validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "datetime":
			msgs = append(msgs, fmt.Sprintf("%s %q must use format YYYY-MM-DD", fe.Field(), fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed '%s=%s' (value %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return fmt.Errorf("invalid request: %s", strings.Join(msgs, "; "))
}
