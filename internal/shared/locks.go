package shared

import "fmt"

// IntegrityLockKey builds redis keys guarding integrity scans so two workers
// never run the same scan concurrently.
func IntegrityLockKey(scan string) string {
	return fmt.Sprintf("integrity:%s:lock", scan)
}
