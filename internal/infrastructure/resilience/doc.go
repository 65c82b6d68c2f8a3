/*
Package resilience provides circuit breakers for outbound page loads.

A Breaker moves between three states:

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                                                |
	                                            [failure]
	                                                v
	                                              Open

A Group keys breakers by origin so one failing site does not block loads
from others:

	group := resilience.NewGroup(resilience.Settings{Timeout: 30 * time.Second})
	err := group.Get(origin).Execute(func() error {
		return fetch(ctx, url)
	})
*/
package resilience
