package broker

import "time"

// nowFunc is overridden in tests that need to exercise TTL expiry
// without sleeping.
var nowFunc = time.Now
