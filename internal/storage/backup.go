package storage

import (
	"fmt"
	"os"
	"time"
)

// BackupTimeLayout is the timestamp format used in backup file names.
const BackupTimeLayout = "20060102_150405"

// BackupPath returns an unused backup path for table at time now, of the
// form "<table>.bak_YYYYMMDD_HHMMSS". When a backup with that name already
// exists (two writes in the same second) a ".N" suffix is appended.
func BackupPath(table string, now time.Time) string {
	base := table + ".bak_" + now.Format(BackupTimeLayout)
	candidate := base
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = fmt.Sprintf("%s.%d", base, i)
	}
}
