package redis

import "fmt"

const ns = "cineseat:v1"

func KeyShowtimeAvailability(showtimeID int64) string {
	return fmt.Sprintf("%s:showtime:%d:availability", ns, showtimeID)
}

func KeyShowtimeSeatMap(showtimeID int64, onlyAvailable bool, limit, offset int) string {
	return fmt.Sprintf("%s:showtime:%d:seatmap:%t:%d:%d", ns, showtimeID, onlyAvailable, limit, offset)
}

// KeyShowtimeSeatMapPattern matches every cached page of a showtime's seat map.
func KeyShowtimeSeatMapPattern(showtimeID int64) string {
	return fmt.Sprintf("%s:showtime:%d:seatmap:*", ns, showtimeID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdempotency(scope, key string) string {
	return fmt.Sprintf("%s:idem:%s:%s", ns, scope, key)
}

func KeyLock(name string) string {
	return fmt.Sprintf("%s:lock:%s", ns, name)
}

func ChannelShowtimeChanged(showtimeID int64) string {
	return fmt.Sprintf("%s:showtime:%d:changed", ns, showtimeID)
}
