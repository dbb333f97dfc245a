package alert

import (
	"fmt"
	"strings"
	"time"

	"emergency_alert_service/internal/domain/geo"
)

// RenderMessage builds the notification body sent on every dispatch. The
// location block is omitted when no fix is available.
func RenderMessage(a *Alert, loc *geo.Location, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "EMERGENCY ALERT - %s\n\n", a.UserName)

	if loc != nil {
		fmt.Fprintf(&b, "GPS position:\n")
		fmt.Fprintf(&b, "- Latitude: %.6f\n", loc.Latitude)
		fmt.Fprintf(&b, "- Longitude: %.6f\n", loc.Longitude)
		fmt.Fprintf(&b, "- Accuracy: %.0fm\n", loc.Accuracy)
		fmt.Fprintf(&b, "- Time: %s\n\n", loc.Timestamp.Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(&b, "Google Maps:\n%s\n\n", geo.MapsLink(loc.Latitude, loc.Longitude))
	} else {
		fmt.Fprintf(&b, "GPS position unavailable.\n\n")
	}

	if a.TotalSent > 0 {
		// Reminder sends carry a counter so the recipient can tell them apart.
		fmt.Fprintf(&b, "Automatic reminder %d/%d, sent %s.\n",
			a.TotalSent+1, a.MaxSends, now.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Fprintf(&b, "This is an automatic emergency message.\n")
	}
	return b.String()
}

// Subject returns the message subject used by channels that carry one.
func Subject(a *Alert) string {
	if a.TotalSent > 0 {
		return fmt.Sprintf("EMERGENCY ALERT %s (automatic reminder)", strings.ToUpper(a.UserName))
	}
	return fmt.Sprintf("EMERGENCY ALERT %s", strings.ToUpper(a.UserName))
}
