package notify

import "fmt"

// Render produces the user-facing title and body for an intent. Copy is
// German, matching the household the service runs in.
func Render(i Intent) (title, body string) {
	switch i.Kind {
	case KindYouAreNext:
		if i.Payload.PreviousName != "" {
			return fmt.Sprintf("%s ist fertig!", i.Payload.PreviousName),
				fmt.Sprintf("Die Waschmaschine ist frei. Hol' dir den Schlüssel von %s.", i.Payload.PreviousName)
		}
		return "Du bist dran!", "Die Waschmaschine ist frei. Bestätige jetzt deinen Waschgang!"
	case KindHandoffAcknowledged:
		return fmt.Sprintf("%s möchte jetzt waschen.", i.Payload.NextName),
			fmt.Sprintf("Gib den Schlüssel an %s weiter.", i.Payload.NextName)
	case KindTimerExpired:
		return "Waschgang fertig!", "Dein Timer ist abgelaufen. Bitte räume die Maschine."
	case KindTimerExpiredOthers:
		return "Gleich frei", fmt.Sprintf("Der Waschgang von %s ist fertig.", i.Payload.HolderName)
	default:
		return "Waschmaschine", "Statusänderung."
	}
}
