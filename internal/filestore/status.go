package filestore

import "fmt"

// LinkStatus is the persisted download state of a link.
type LinkStatus int

const (
	StatusFinished LinkStatus = iota
	StatusOffline
	StatusOnline
	StatusQueued
	StatusSkipped
	StatusWaiting
	StatusTempOffline
	StatusStarting
	StatusFailed
	StatusAborted
	StatusDecrypting
	StatusCustom
	StatusDownloading
	StatusProcessing
	StatusUnknown
)

var statusNames = [...]string{
	StatusFinished:    "finished",
	StatusOffline:     "offline",
	StatusOnline:      "online",
	StatusQueued:      "queued",
	StatusSkipped:     "skipped",
	StatusWaiting:     "waiting",
	StatusTempOffline: "temp_offline",
	StatusStarting:    "starting",
	StatusFailed:      "failed",
	StatusAborted:     "aborted",
	StatusDecrypting:  "decrypting",
	StatusCustom:      "custom",
	StatusDownloading: "downloading",
	StatusProcessing:  "processing",
	StatusUnknown:     "unknown",
}

func (s LinkStatus) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Valid reports whether s is a known status.
func (s LinkStatus) Valid() bool {
	return s >= StatusFinished && s <= StatusUnknown
}

// restartable lists statuses reset by RestartFailed.
var restartable = []LinkStatus{StatusFailed, StatusAborted, StatusTempOffline}

// Queue identifies where a package lives.
type Queue int

const (
	QueueCollector Queue = 0
	QueueActive    Queue = 1
)
