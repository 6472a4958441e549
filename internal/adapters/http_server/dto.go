package httpserver

import (
	"errors"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

// periodRequest is the body of preview and commit.
type periodRequest struct {
	RoomTypeID      int64            `json:"roomTypeId" validate:"required,gt=0"`
	OccupancyTypeID int64            `json:"occupancyTypeId" validate:"required,gt=0"`
	MealPlanID      *int64           `json:"mealPlanId" validate:"omitempty,gt=0"`
	StartDate       string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate         string           `json:"endDate" validate:"required,datetime=2006-01-02"`
	Price           *decimal.Decimal `json:"price" validate:"required"`
	ExcludeID       string           `json:"excludeId" validate:"omitempty,len=26,alphanum"`
	PreviewToken    string           `json:"previewToken" validate:"omitempty,len=40,hexadecimal"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validateRequest(req periodRequest) []domain.FieldProblem {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []domain.FieldProblem{{Field: "body", Reason: err.Error()}}
	}
	probs := make([]domain.FieldProblem, 0, len(verrs))
	for _, fe := range verrs {
		probs = append(probs, domain.FieldProblem{Field: fe.Field(), Reason: reason(fe)})
	}
	return probs
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return "must be " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}

func (req periodRequest) candidate(hotelID int64) (domain.Candidate, error) {
	start, err := domain.ParseDay(req.StartDate)
	if err != nil {
		return domain.Candidate{}, &domain.ValidationError{Problems: []domain.FieldProblem{{Field: "startDate", Reason: "must be a YYYY-MM-DD date"}}}
	}
	end, err := domain.ParseDay(req.EndDate)
	if err != nil {
		return domain.Candidate{}, &domain.ValidationError{Problems: []domain.FieldProblem{{Field: "endDate", Reason: "must be a YYYY-MM-DD date"}}}
	}
	return domain.Candidate{
		Group: domain.GroupKey{
			HotelID:         hotelID,
			RoomTypeID:      req.RoomTypeID,
			OccupancyTypeID: req.OccupancyTypeID,
			MealPlanID:      req.MealPlanID,
		},
		Range:     domain.NewDateRange(start, end),
		Price:     *req.Price,
		ExcludeID: req.ExcludeID,
	}, nil
}

// groupFromQuery reads room_type, occupancy and the optional meal_plan
// ("" or "none" selects the room-only group).
func groupFromQuery(hotelID int64, q url.Values) (domain.GroupKey, []domain.FieldProblem) {
	var probs []domain.FieldProblem
	positive := func(name string) int64 {
		v, err := strconv.ParseInt(q.Get(name), 10, 64)
		if err != nil || v <= 0 {
			probs = append(probs, domain.FieldProblem{Field: name, Reason: "required positive integer"})
			return 0
		}
		return v
	}
	key := domain.GroupKey{
		HotelID:         hotelID,
		RoomTypeID:      positive("room_type"),
		OccupancyTypeID: positive("occupancy"),
	}
	if mp := q.Get("meal_plan"); mp != "" && mp != "none" {
		if v := positive("meal_plan"); v > 0 {
			key.MealPlanID = &v
		}
	}
	return key, probs
}

func validID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
