package appointment

import (
	"fmt"
	"strings"

	"github.com/nzlopez07/Florens/internal/platform/apperr"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusAttended, StatusNoShow},
	StatusConfirmed: {StatusAttended, StatusNoShow, StatusCancelled},
}

// AllowedFrom lists the statuses reachable from s.
func AllowedFrom(s Status) []Status {
	return transitions[s]
}

// CheckTransition returns nil when from may move to to.
func CheckTransition(from, to Status) error {
	if from.IsFinal() {
		return apperr.ValidationCode(apperr.CodeFinalStatus,
			fmt.Sprintf("appointment is %s (final) and cannot change", from))
	}
	allowed := transitions[from]
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return apperr.ValidationCode(apperr.CodeInvalidStatusTransition,
		fmt.Sprintf("cannot change from %s to %s; allowed: %s", from, to, strings.Join(names, ", ")))
}
