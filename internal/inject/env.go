package inject

import (
	"os"
	"strconv"
	"time"

	"github.com/samber/lo"
)

func envOr(key, def string) string {
	return lo.CoalesceOrEmpty(os.Getenv(key), def)
}

func envBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return lo.Ternary(err == nil, v, def)
}

func envDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	return lo.Ternary(err == nil && v > 0, v, def)
}
