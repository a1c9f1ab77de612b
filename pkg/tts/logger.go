package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxLoggedText bounds how much of each prompt lands in the history.
const maxLoggedText = 400

var history = struct {
	sync.Mutex
	path string
}{path: "logs/tts.log"}

// SetLogPath configures the synthesis history file. An empty path disables it.
func SetLogPath(path string) {
	history.Lock()
	defer history.Unlock()
	history.path = path
}

// Log appends one line per synthesis attempt to the history file:
//
//	2006-01-02 15:04:05	PROVIDER	200	text
//
// A failed attempt records the error in place of the status code.
func Log(provider, text string, status int, err error) {
	outcome := strconv.Itoa(status)
	if err != nil {
		outcome = "error: " + oneLine(err.Error())
	}
	text = oneLine(text)
	if len(text) > maxLoggedText {
		text = text[:maxLoggedText] + "..."
	}
	line := fmt.Sprintf("%s\t%s\t%s\t%s\n", time.Now().Format(time.DateTime), provider, outcome, text)

	history.Lock()
	defer history.Unlock()
	if history.path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(history.path), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(history.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.WriteString(line)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
