package enrollment

import "time"

// SetNowFunc swaps the clock used by the service and returns a func restoring it.
func SetNowFunc(f func() time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = f
	return func() { nowFunc = orig }
}
