package aria2

import (
	"encoding/json"
	"testing"
)

func TestGlobalStat_RoundTrip(t *testing.T) {
	in := GlobalStat{
		DownloadSpeed: 1 << 40,
		NumActive:     3,
		NumWaiting:    12,
		NumStopped:    7,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	json.Unmarshal(data, &raw)
	if raw["numWaiting"] != "12" {
		t.Errorf("numWaiting encoded as %v, want decimal string", raw["numWaiting"])
	}

	var out GlobalStat
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestStatusInfo_RoundTrip(t *testing.T) {
	code := ErrorCode(9)
	in := StatusInfo{
		GID:             "2089b05ecca3d829",
		Status:          StatusError,
		TotalLength:     9_223_372_036_854_775_807,
		CompletedLength: 123456789,
		DownloadSpeed:   0,
		ErrorCode:       &code,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out StatusInfo
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.TotalLength != in.TotalLength || out.CompletedLength != in.CompletedLength {
		t.Errorf("lengths = %d/%d, want %d/%d", out.CompletedLength, out.TotalLength, in.CompletedLength, in.TotalLength)
	}
	if out.ErrorCode == nil || *out.ErrorCode != 9 {
		t.Errorf("ErrorCode = %v, want 9", out.ErrorCode)
	}
}

func TestInt64_RejectsGarbage(t *testing.T) {
	tests := []string{`"12a"`, `12`, `""`, `null`, `"1.5"`}
	for _, in := range tests {
		var n Int64
		if err := json.Unmarshal([]byte(in), &n); err == nil {
			t.Errorf("Unmarshal(%s) should fail, got %d", in, n)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	tests := map[Status]bool{
		StatusActive:   false,
		StatusWaiting:  false,
		StatusPaused:   false,
		StatusError:    true,
		StatusComplete: true,
		StatusRemoved:  true,
	}
	for status, want := range tests {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestErrorCode_Description(t *testing.T) {
	if got := ErrorCode(9).Description(); got != "There was not enough disk space available." {
		t.Errorf("code 9 = %q", got)
	}
	if got := ErrorCode(99).Description(); got != UnknownErrorDescription {
		t.Errorf("unknown code = %q", got)
	}
	if got := DescribeErrorCode(nil); got != UnknownErrorDescription {
		t.Errorf("nil code = %q", got)
	}
}

func TestDaemonConfig_Args(t *testing.T) {
	cfg := DaemonConfig{Port: 16800, Secret: "abc", MaxConcurrent: 3, UserAgent: "seriesgrab/1.0", HostPID: 42}
	args := cfg.Args()

	want := []string{
		"--enable-rpc=true",
		"--rpc-listen-port=16800",
		"--rpc-secret=abc",
		"--max-concurrent-downloads=3",
		"--allow-overwrite=true",
		"--stop-with-process=42",
		"--user-agent=seriesgrab/1.0",
	}
	have := make(map[string]bool, len(args))
	for _, a := range args {
		have[a] = true
	}
	for _, w := range want {
		if !have[w] {
			t.Errorf("missing arg %q in %v", w, args)
		}
	}
	if cfg.Endpoint() != "http://127.0.0.1:16800/jsonrpc" {
		t.Errorf("Endpoint = %q", cfg.Endpoint())
	}
}
