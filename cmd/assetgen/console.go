package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const debugEnvVar = "ASSETGEN_DEBUG"

// ConsoleWriter renders zerolog's json events as coloured, task prefixed
// lines.
type ConsoleWriter struct {
	out    io.Writer
	colors colorstring.Colorize
	buffer strings.Builder
	lock   sync.Mutex
}

// NewConsoleWriter writes to out.  Colours are left out when NO_COLOR is set.
func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &ConsoleWriter{
		out: out,
		colors: colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: noColor,
			Reset:   true,
		},
	}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]any
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	if err := d.Decode(&evt); err != nil {
		return 0, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	switch evt["level"] {
	case "fatal", "error":
		w.buffer.WriteString("[red]")
	case "warn":
		w.buffer.WriteString("[yellow]")
	case "debug", "trace":
		w.buffer.WriteString("[blue]")
	default:
		w.buffer.WriteString("[green]")
	}

	if task, ok := evt["task"].(string); ok {
		w.buffer.WriteString(task + ": ")
	}
	if evt["level"] == "error" {
		w.buffer.WriteString("Error: ")
	}
	msg, _ := evt["message"].(string)
	w.buffer.WriteString(msg)

	for _, key := range []string{"category", "path", "size", "elapsed"} {
		if v, ok := evt[key]; ok {
			fmt.Fprintf(&w.buffer, " %s=%v", key, v)
		}
	}
	if details, ok := evt["error"].(string); ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(details)
	}

	if os.Getenv(debugEnvVar) != "" {
		keys := make([]string, 0, len(evt))
		for k := range evt {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.buffer.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&w.buffer, "  %s: %+v\n", k, evt[k])
		}
	}

	w.buffer.WriteString("[reset]\n")
	if _, err := fmt.Fprint(w.out, w.colors.Color(w.buffer.String())); err != nil {
		return 0, err
	}
	return len(p), nil
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) any {
		return eris.ToString(err, os.Getenv(debugEnvVar) != "")
	}
}
