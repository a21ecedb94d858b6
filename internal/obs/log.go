package obs

import (
	"encoding/json"
	"log"
	"os"
)

var std = log.New(os.Stdout, "", 0)

// Logger returns the process-wide line logger. Every component writes through
// it so the service emits a single JSON stream on stdout.
func Logger() *log.Logger {
	return std
}

// LogRequest marshals entry as one JSON line. A marshal failure is reported
// in-band rather than dropped so the stream never goes silent.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		std.Printf(`{"level":"error","msg":"log entry not serializable","error":%q}`, err.Error())
		return
	}
	std.Println(string(data))
}
