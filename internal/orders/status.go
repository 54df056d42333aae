package orders

import "strings"

type Status string

const (
	StatusInterested Status = "INTERESTED"
	StatusOrdered    Status = "ORDERED"
	StatusPurchased  Status = "PURCHASED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusInterested: {StatusOrdered: true},
	StatusOrdered:    {StatusPurchased: true, StatusCancelled: true},
	StatusPurchased:  {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool {
	return len(validNext[s]) == 0
}

// ParseStatusFilter maps the short list filter ("o,p,c") to statuses.
// Unknown letters fall back to INTERESTED, same as the empty filter.
func ParseStatusFilter(filter string) []Status {
	if filter == "" {
		return []Status{StatusInterested}
	}
	seen := map[Status]bool{}
	var out []Status
	for _, part := range strings.Split(filter, ",") {
		var s Status
		switch strings.TrimSpace(part) {
		case "o":
			s = StatusOrdered
		case "p":
			s = StatusPurchased
		case "c":
			s = StatusCompleted
		default:
			s = StatusInterested
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentSuccessful PaymentStatus = "SUCCESSFUL"
)
