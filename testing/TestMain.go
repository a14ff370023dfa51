// Package testing prepares the process environment for procureflow tests.
// Importing it for side effects puts the binaries in test mode and supplies
// the settings LoadConfig requires.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// TestDefaults are applied to the environment when a variable is unset.
var TestDefaults = map[string]string{
	"SESSION_SECRET": "procureflow-test-secret",
	"LOG_LEVEL":      "error",
	"LOG_FORMAT":     "json",
	"SMTP_FROM":      "no-reply@procureflow.test",
}

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("PROCUREFLOW_TEST_MODE", "1")
		for key, value := range TestDefaults {
			if _, ok := os.LookupEnv(key); !ok {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be reused by packages that want the same environment.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
