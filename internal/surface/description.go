package surface

import (
	"fmt"
	"strings"
	"time"
)

const (
	timeChangeMarker = "⚠️ **TIME CHANGE**"
	clockLayout      = "03:04 PM"
)

// TimeChange is a schedule correction annotation.
type TimeChange struct {
	Old time.Time
	New time.Time
}

// Direction describes the sign of the correction.
func (c TimeChange) Direction() string {
	if c.New.After(c.Old) {
		return "later"
	}
	return "earlier"
}

// Description models a rendered poll description as a base text plus an
// optional time-change annotation. Keeping the annotation structured makes
// re-applying a detected change a field replacement rather than string
// surgery on the rendered message.
type Description struct {
	Base   string
	Change *TimeChange
}

// ParseDescription splits a rendered description back into its structured
// form, discarding any annotation already present. The caller assigns the
// current change (if any) before re-rendering, which is what makes repeated
// application of the same change idempotent.
func ParseDescription(raw string) Description {
	if idx := strings.LastIndex(raw, "\n\n"+timeChangeMarker); idx >= 0 {
		return Description{Base: raw[:idx]}
	}
	return Description{Base: raw}
}

// Render produces the rendered description text.
func (d Description) Render() string {
	if d.Change == nil {
		return d.Base
	}
	return fmt.Sprintf("%s\n\n%s: Game moved from %s to %s (%s)",
		d.Base,
		timeChangeMarker,
		d.Change.Old.Format(clockLayout),
		d.Change.New.Format(clockLayout),
		d.Change.Direction())
}
