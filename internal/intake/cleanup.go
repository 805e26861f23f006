package intake

import (
	"os"

	"github.com/ceramiquejlepage/contact-api/internal/pkg/logger"
)

// Reap deletes the given spool files. It is invoked from every exit
// path of a submission, so deletion must never escalate: an
// already-absent file or a failed unlink is logged and skipped. The
// caller is expected to call Reap exactly once per submission
// (typically via defer), but a second call is harmless.
func Reap(paths []string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		err := os.Remove(path)
		switch {
		case err == nil:
			logger.Debug("spool file removed", "path", path)
		case os.IsNotExist(err):
			logger.Warn("spool file already absent", "path", path)
		default:
			logger.Warn("spool cleanup failed", "path", path, "error", err)
		}
	}
}
