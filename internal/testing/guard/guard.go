package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FRESHLEDGER_TEST_MODE") == "" {
			_ = os.Setenv("FRESHLEDGER_TEST_MODE", "1")
		}
	})
}
