/*
Package resilience provides a circuit breaker for calls to the ptyd daemon.

A client that keeps talking to a daemon which is down or failing would
otherwise pay a full connect or request timeout on every call. The breaker
fails those calls fast once enough of them have failed, and lets a few
probes through after a cool-down.

# Usage

	breaker := resilience.New("ptyd", resilience.Settings{
		Timeout: 5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, ErrNotFound)
		},
	})

	err := breaker.Do(func() error {
		return call()
	})

# States

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                                                |
	                                            [failure]
	                                                v
	                                              Open
*/
package resilience
