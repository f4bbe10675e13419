package tasks

import (
	"fmt"

	"github.com/desertthunder/ytaudio/internal/models"
)

// ProgressUpdate reports a phase transition of one job.
type ProgressUpdate struct {
	Filename string       // Job filename
	Phase    models.Phase // Phase the job just entered
	Message  string       // Human-readable message for display
	Err      error        // Cause when Phase is failed
}

func (u ProgressUpdate) String() string {
	if u.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", u.Filename, u.Phase, u.Err)
	}
	return fmt.Sprintf("%s: %s", u.Filename, u.Phase)
}

func downloadedUpdate(filename, title string) ProgressUpdate {
	return ProgressUpdate{
		Filename: filename,
		Phase:    models.PhaseDownloaded,
		Message:  fmt.Sprintf("Converted %s", title),
	}
}

func uploadedUpdate(filename string, size int64) ProgressUpdate {
	return ProgressUpdate{
		Filename: filename,
		Phase:    models.PhaseUploaded,
		Message:  fmt.Sprintf("Stored %d bytes", size),
	}
}

func failedUpdate(filename string, err error) ProgressUpdate {
	return ProgressUpdate{
		Filename: filename,
		Phase:    models.PhaseFailed,
		Message:  "Conversion failed",
		Err:      err,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
