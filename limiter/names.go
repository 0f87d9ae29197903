package limiter

import (
	"strconv"
	"sync/atomic"
)

var nameCounter atomic.Int64

// nextDefaultName synthesizes a default limiter name, used when a builder isn't given an explicit one so metrics
// still get a stable, unique id tag.
func nextDefaultName(prefix string) string {
	return prefix + "-" + strconv.FormatInt(nameCounter.Add(1), 10)
}
