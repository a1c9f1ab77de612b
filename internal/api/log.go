package api

import (
	"net/http"
	"slices"
	"strings"

	"flyover/pkg/logging"
)

// maxParamLen drops noisy values such as narratives and ids from the status line.
const maxParamLen = 20

// StatusLine is the latest INFO+ log record, formatted for the status bar.
type StatusLine struct {
	Log   string `json:"log"`
	Level string `json:"level,omitempty"`
}

// handleLatestLog handles GET /api/log/latest
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	var out StatusLine
	if line, ok := logging.Latest.Last(); ok {
		out = StatusLine{Log: statusText(line), Level: line.Level.String()}
	}
	writeJSON(w, http.StatusOK, out)
}

// statusText renders "HH:MM:SS Message (k=v, ...)" with short params sorted.
func statusText(l logging.Line) string {
	var params []string
	for _, a := range l.Attrs {
		if v := a.Value.String(); len(v) <= maxParamLen {
			params = append(params, a.Key+"="+v)
		}
	}
	slices.Sort(params)

	var sb strings.Builder
	if !l.Time.IsZero() {
		sb.WriteString(l.Time.Format("15:04:05 "))
	}
	sb.WriteString(l.Message)
	if len(params) > 0 {
		sb.WriteString(" (" + strings.Join(params, ", ") + ")")
	}
	return sb.String()
}
