package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrLifecycle marks a trail that breaks the event ordering rules.
var ErrLifecycle = errors.New("invalid event lifecycle")

// ValidateLifecycle checks every instance trail in events:
//
//	open
//	  { validation-error }*
//	  submit-start then exactly one of submit-success | submit-error
//	  [ save-add-another ] right after a submit-success
//	  [ cancel-discard-prompted ]
//
// Events are grouped by instance and ordered by sequence number. A trail
// ending on submit-start is accepted as still in flight.
func ValidateLifecycle(events []Event) error {
	byInstance := make(map[string][]Event)
	var order []string
	for _, e := range events {
		if _, ok := byInstance[e.InstanceID]; !ok {
			order = append(order, e.InstanceID)
		}
		byInstance[e.InstanceID] = append(byInstance[e.InstanceID], e)
	}

	var errs []error
	for _, id := range order {
		trail := byInstance[id]
		sort.SliceStable(trail, func(i, j int) bool { return trail[i].Seq < trail[j].Seq })
		if err := validateTrail(trail); err != nil {
			errs = append(errs, fmt.Errorf("instance %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func validateTrail(trail []Event) error {
	var prev Name
	for i, e := range trail {
		fail := func(format string, args ...any) error {
			return fmt.Errorf("%w: seq %d %s: %s", ErrLifecycle, e.Seq, e.Name, fmt.Sprintf(format, args...))
		}
		if i == 0 && e.Name != EventOpen {
			return fail("trail must start with %s", EventOpen)
		}
		if prev == EventSubmitStart && e.Name != EventSubmitSuccess && e.Name != EventSubmitError {
			return fail("%s must be followed by an outcome", EventSubmitStart)
		}
		switch e.Name {
		case EventOpen:
			if i != 0 {
				return fail("open emitted twice")
			}
		case EventSubmitSuccess:
			if prev != EventSubmitStart {
				return fail("outcome without %s", EventSubmitStart)
			}
			id, ok := asInt64(e.Payload[KeyServerID])
			if !ok || id <= 0 {
				return fail("missing server id")
			}
		case EventSubmitError:
			if prev != EventSubmitStart {
				return fail("outcome without %s", EventSubmitStart)
			}
		case EventSaveAddAnother:
			if prev != EventSubmitSuccess {
				return fail("must follow %s", EventSubmitSuccess)
			}
		case EventValidationError, EventSubmitStart, EventDiscardPrompted:
		default:
			return fail("unknown event")
		}
		prev = e.Name
	}
	return nil
}

// asInt64 reads an id that may have gone through a JSON round trip.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
