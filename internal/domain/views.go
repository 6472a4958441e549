package domain

// Read models returned to the API layer and stored in the listing cache.

type PeriodView struct {
	ID              string `json:"id"`
	HotelID         int64  `json:"hotelId"`
	RoomTypeID      int64  `json:"roomTypeId"`
	OccupancyTypeID int64  `json:"occupancyTypeId"`
	MealPlanID      *int64 `json:"mealPlanId"`
	StartDate       string `json:"startDate"`
	EndDate         string `json:"endDate"`
	Price           string `json:"price"`
	Label           string `json:"label"`
}

type PlannedView struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Price     string `json:"price"`
	Label     string `json:"label"`
	IsNew     bool   `json:"isNew"`
	SplitFrom string `json:"splitFrom,omitempty"`
}

type PreviewResult struct {
	WillSplit        bool          `json:"willSplit"`
	AffectedPeriods  []PeriodView  `json:"affectedPeriods"`
	ResultingPeriods []PlannedView `json:"resultingPeriods"`
	ToDelete         []string      `json:"toDelete"`
	Message          string        `json:"message"`
	// Token must be echoed back on commit so it can detect a changed group.
	Token string `json:"previewToken"`
}

type CommitResult struct {
	Created []PeriodView `json:"created"`
	Deleted []string     `json:"deleted"`
	Periods []PeriodView `json:"periods"` // full group after commit
}

type GroupPeriods struct {
	Items []PeriodView `json:"items"`
}

func ViewOf(p PricingPeriod) PeriodView {
	return PeriodView{
		ID:              p.ID,
		HotelID:         p.Group.HotelID,
		RoomTypeID:      p.Group.RoomTypeID,
		OccupancyTypeID: p.Group.OccupancyTypeID,
		MealPlanID:      p.Group.MealPlanID,
		StartDate:       p.Range.Start.Format(DateLayout),
		EndDate:         p.Range.End.Format(DateLayout),
		Price:           FormatPrice(p.Price),
		Label:           p.Label(),
	}
}

func ViewsOf(ps []PricingPeriod) []PeriodView {
	out := make([]PeriodView, 0, len(ps))
	for _, p := range ps {
		out = append(out, ViewOf(p))
	}
	return out
}

func PlannedViewOf(p PlannedPeriod) PlannedView {
	label := p.Period().Label()
	if p.IsNew {
		label += " (new)"
	}
	return PlannedView{
		StartDate: p.Range.Start.Format(DateLayout),
		EndDate:   p.Range.End.Format(DateLayout),
		Price:     FormatPrice(p.Price),
		Label:     label,
		IsNew:     p.IsNew,
		SplitFrom: p.SplitFrom,
	}
}
