package aria2

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ErrorCode is the numeric exit status aria2 attaches to a failed download.
type ErrorCode int

// UnknownErrorDescription is used for codes missing from the table.
const UnknownErrorDescription = "Unknown error occurred."

var errorDescriptions = map[ErrorCode]string{
	0:  "All downloads were successful.",
	1:  UnknownErrorDescription,
	2:  "Time out occurred.",
	3:  "A resource was not found.",
	4:  "The specified number of \"resource not found\" errors was reached.",
	5:  "Download speed was too slow.",
	6:  "Network problem occurred.",
	7:  "There were unfinished downloads.",
	8:  "Remote server did not support resume when resume was required to complete download.",
	9:  "There was not enough disk space available.",
	10: "Piece length was different from one in .aria2 control file.",
	11: "The same file was already being downloaded.",
	12: "The same info hash torrent was already being downloaded.",
	13: "File already existed.",
	14: "Renaming file failed.",
	15: "Could not open existing file.",
	16: "Could not create new file or truncate existing file.",
	17: "File I/O error occurred.",
	18: "Could not create directory.",
	19: "Name resolution failed.",
	20: "Could not parse Metalink document.",
	21: "FTP command failed.",
	22: "HTTP response header was bad or unexpected.",
	23: "Too many redirects occurred.",
	24: "HTTP authorization failed.",
	25: "Could not parse bencoded file.",
	26: "Torrent file was corrupted or missing information.",
	27: "Magnet URI was bad.",
	28: "Bad or unrecognized option was given or unexpected option argument was given.",
	29: "The remote server was unable to handle the request due to a temporary overloading or maintenance.",
	30: "Could not parse JSON-RPC request.",
	31: "Reserved.",
	32: "Checksum validation failed.",
}

// Description returns a human-readable reason for the code.
func (c ErrorCode) Description() string {
	if d, ok := errorDescriptions[c]; ok {
		return d
	}
	return UnknownErrorDescription
}

// DescribeErrorCode is like Description but accepts a missing code.
func DescribeErrorCode(c *ErrorCode) string {
	if c == nil {
		return UnknownErrorDescription
	}
	return c.Description()
}

// MarshalJSON encodes c as a decimal string.
func (c ErrorCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(c)))
}

// UnmarshalJSON decodes a decimal string into c.
func (c *ErrorCode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("expected decimal error code, got %s", b)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("parse error code %q: %w", s, err)
	}
	*c = ErrorCode(v)
	return nil
}
