package conn

import "time"

// ReconnectDelay returns the delay before reconnect attempt N
// (1-based): base multiplied by the attempt number, capped at three
// steps. With the default 5s base the sequence is 5s, 10s, 15s, 15s.
func ReconnectDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	step := attempt
	if step < 1 {
		step = 1
	}
	if step > 3 {
		step = 3
	}
	return base * time.Duration(step)
}
