package prices

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"meanrev/internal/util"
)

// LatestFinishedSession returns the most recent trading day whose market
// session has ended (after 20:05 ET, so extended-hours data has settled),
// according to the Alpaca trading calendar.
func LatestFinishedSession(apiKey, apiSecret, baseURL string) (time.Time, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.Time{}, fmt.Errorf("loading ET timezone: %w", err)
	}

	now := time.Now().In(et)
	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}
	if len(calendar) == 0 {
		return time.Time{}, fmt.Errorf("no trading days returned from calendar")
	}

	today := now.Format("2006-01-02")
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, et)

	for i := len(calendar) - 1; i >= 0; i-- {
		day := calendar[i]
		// Today's session only counts once it has finished.
		if day.Date == today && !now.After(cutoff) {
			continue
		}
		date, err := util.ParseDay(day.Date)
		if err != nil {
			continue
		}
		return date, nil
	}

	return time.Time{}, fmt.Errorf("could not determine latest finished trading day")
}
