package modules

import "time"

// Limits are per-window request budgets. Auth applies per IP and route to
// public credential endpoints; API applies per user to authenticated ones.
type Limits struct {
	Auth   int
	API    int
	Window time.Duration
}
