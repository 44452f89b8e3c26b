package aria2

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Int64 is an integer that the daemon encodes as a decimal string.
type Int64 int64

// MarshalJSON encodes n as a decimal string.
func (n Int64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(n), 10))
}

// UnmarshalJSON decodes a decimal string into n.
func (n *Int64) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected decimal string, got %s", b)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse decimal %q: %w", s, err)
	}
	*n = Int64(v)
	return nil
}

// Status is the lifecycle state the daemon reports for a download.
type Status string

const (
	StatusActive   Status = "active"
	StatusWaiting  Status = "waiting"
	StatusPaused   Status = "paused"
	StatusError    Status = "error"
	StatusComplete Status = "complete"
	StatusRemoved  Status = "removed"
)

// Terminal reports whether the daemon will never move the download again.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError || s == StatusRemoved
}

// StatusKeys is the field set requested from the tell* methods.
var StatusKeys = []string{"gid", "status", "totalLength", "completedLength", "downloadSpeed", "errorCode"}

// GlobalStat is the result of aria2.getGlobalStat.
type GlobalStat struct {
	DownloadSpeed   Int64 `json:"downloadSpeed"`
	UploadSpeed     Int64 `json:"uploadSpeed,omitempty"`
	NumActive       Int64 `json:"numActive"`
	NumWaiting      Int64 `json:"numWaiting"`
	NumStopped      Int64 `json:"numStopped"`
	NumStoppedTotal Int64 `json:"numStoppedTotal,omitempty"`
}

// Idle reports whether the daemon knows about no downloads at all.
func (g GlobalStat) Idle() bool {
	return g.NumActive == 0 && g.NumWaiting == 0 && g.NumStopped == 0
}

// StatusInfo is one record from aria2.tellActive/tellWaiting/tellStopped.
type StatusInfo struct {
	GID             string     `json:"gid"`
	Status          Status     `json:"status"`
	TotalLength     Int64      `json:"totalLength"`
	CompletedLength Int64      `json:"completedLength"`
	DownloadSpeed   Int64      `json:"downloadSpeed"`
	ErrorCode       *ErrorCode `json:"errorCode,omitempty"`
}

// Options are daemon options passed to addUri and changeGlobalOption.
type Options map[string]string
