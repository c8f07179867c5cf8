package grouping

// Status is the lifecycle state of a shipment group.
type Status string

// Shipment group statuses, strictly forward-moving.
const (
	StatusDraft     Status = "draft"
	StatusValidated Status = "validated"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
)

func statusRank(s Status) int {
	switch s {
	case StatusDraft:
		return 0
	case StatusValidated:
		return 1
	case StatusPaid:
		return 2
	case StatusShipped:
		return 3
	}
	return -1
}

// AllowedTransition reports whether a group may move from one status to
// the next. Only single forward steps are allowed; draft groups are
// dissolved, not transitioned backwards.
func AllowedTransition(from, to Status) bool {
	fr, tr := statusRank(from), statusRank(to)
	if fr < 0 || tr < 0 {
		return false
	}
	return tr == fr+1
}

// Dissolvable reports whether a group in the given status may still be
// dissolved. Paid and shipped groups are locked.
func Dissolvable(s Status) bool {
	return statusRank(s) < statusRank(StatusPaid)
}
