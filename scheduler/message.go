package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/muelltonne/muellbot/model"
)

var germanWeekdays = map[time.Weekday]string{
	time.Monday:    "Montag",
	time.Tuesday:   "Dienstag",
	time.Wednesday: "Mittwoch",
	time.Thursday:  "Donnerstag",
	time.Friday:    "Freitag",
	time.Saturday:  "Samstag",
	time.Sunday:    "Sonntag",
}

// NotificationText renders the daily message: one line per category
// collected on the given date.
func NotificationText(date time.Time, categories []model.WasteCategory) string {
	var sb strings.Builder

	sb.WriteString(
		fmt.Sprintf(
			"🚛 Morgen (%s, %s) wird abgeholt:\n",
			germanWeekdays[date.Weekday()],
			date.Format("02.01.2006"),
		),
	)

	for _, category := range categories {
		sb.WriteString(fmt.Sprintf("\n%s %s", category.Emoji(), category.DisplayName()))
	}

	sb.WriteString("\n\nBitte rechtzeitig rausstellen!")

	return sb.String()
}
