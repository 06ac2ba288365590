package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("WARELANE_TEST_MODE") == "" {
			_ = os.Setenv("WARELANE_TEST_MODE", "1")
		}
	})
}
