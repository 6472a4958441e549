package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"hotel_rates/internal/domain"
)

type ImportReport struct {
	HotelID   int64
	Fetched   int
	Committed int
	Invalid   int
	Missing   bool // feed has no such hotel
}

// ImportService pulls contracted rates from a supplier feed and inserts them
// row by row through the same split-on-insert path as manual edits. Rows are
// applied in feed order, so a later row overrides an earlier one.
type ImportService struct {
	feed     domain.RateFeed
	commands *CommandService
}

func NewImportService(f domain.RateFeed, c *CommandService) *ImportService {
	return &ImportService{feed: f, commands: c}
}

func (s *ImportService) ImportHotel(ctx context.Context, hotelID int64) (ImportReport, error) {
	rep := ImportReport{HotelID: hotelID}

	rows, err := s.feed.GetRates(ctx, hotelID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			rep.Missing = true
			return rep, nil
		}
		return rep, err
	}
	rep.Fetched = len(rows)

	for i, row := range rows {
		c, err := mapRate(hotelID, row)
		if err != nil {
			rep.Invalid++
			log.Warn().Int64("hotel", hotelID).Int("row", i).Err(err).Msg("unmappable rate row")
			continue
		}
		// no preview token: the feed is authoritative
		if _, err := s.commands.Commit(ctx, c, ""); err != nil {
			if errors.Is(err, domain.ErrValidation) {
				rep.Invalid++
				log.Warn().Int64("hotel", hotelID).Int("row", i).Err(err).Msg("invalid rate row")
				continue
			}
			return rep, fmt.Errorf("import hotel %d row %d: %w", hotelID, i, err)
		}
		rep.Committed++
	}
	return rep, nil
}
