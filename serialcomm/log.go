// serialcomm/log.go
package serialcomm

import (
	"log/slog"
	"strings"
)

// LevelTrace sits below debug and carries one record per frame.
const LevelTrace = slog.Level(-8)

// printable renders frame bytes for logs, replacing invalid UTF-8.
func printable(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
