package composer

import (
	"fmt"
	"time"

	"dashmail/models"
)

// Wall-clock layouts used by the scheduler dialog
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ToUTCInstant converts a user-picked local wall-clock date and time into
// the equivalent absolute UTC instant.
//
// offsetMinutes is the number of minutes to ADD to local wall-clock time to
// reach UTC, matching JavaScript's Date.getTimezoneOffset: positive west of
// UTC, negative east. A client in UTC+5:30 reports -330, so local
// 2024-05-01 09:00 yields 2024-05-01T03:30:00Z.
//
// The offset is the client's instantaneous offset at call time; dates that
// cross a DST transition before delivery are not recalculated.
func ToUTCInstant(localDate, localTime string, offsetMinutes int) (time.Time, error) {
	d, err := time.Parse(DateLayout, localDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", localDate, err)
	}
	t, err := time.Parse(TimeLayout, localTime)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", localTime, err)
	}

	naive := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	return naive.Add(time.Duration(offsetMinutes) * time.Minute), nil
}

// NewScheduleSelection builds a confirmed schedule selection from the
// dialog's date, time and client offset
func NewScheduleSelection(localDate, localTime string, offsetMinutes int) (models.ScheduleSelection, error) {
	instant, err := ToUTCInstant(localDate, localTime, offsetMinutes)
	if err != nil {
		return models.ScheduleSelection{}, err
	}
	return models.ScheduleSelection{
		LocalDate:  localDate,
		LocalTime:  localTime,
		UTCInstant: instant,
	}, nil
}

// FromUTCInstant converts a UTC instant back to local wall-clock date and
// time for the given client offset. Inverse of ToUTCInstant.
func FromUTCInstant(instant time.Time, offsetMinutes int) (localDate, localTime string) {
	local := instant.UTC().Add(-time.Duration(offsetMinutes) * time.Minute)
	return local.Format(DateLayout), local.Format(TimeLayout)
}
