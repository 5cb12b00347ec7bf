package errors

import (
	"fmt"
	"html"
	"strings"
	"sync"
	"time"
)

// Severity represents the severity of a collected diagnostic
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is one collected failure together with when it was seen.
type Diagnostic struct {
	Err       error
	Severity  Severity
	Timestamp time.Time
}

// Collector gathers diagnostics from concurrent workers. Stages running
// under the continue policy record their per-item failures here as warnings.
type Collector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewCollector creates a new collector
func NewCollector() *Collector {
	return &Collector{}
}

// Warn records err as a warning
func (c *Collector) Warn(err error) {
	c.add(err, SeverityWarning)
}

// Fail records err as an error
func (c *Collector) Fail(err error) {
	c.add(err, SeverityError)
}

func (c *Collector) add(err error, severity Severity) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Err:       err,
		Severity:  severity,
		Timestamp: time.Now(),
	})
}

// Diagnostics returns a copy of everything collected so far, in order.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]Diagnostic, len(c.diagnostics))
	copy(result, c.diagnostics)
	return result
}

// Warnings returns the errors recorded as warnings.
func (c *Collector) Warnings() []error {
	return c.bySeverity(SeverityWarning)
}

// Errors returns the errors recorded as errors.
func (c *Collector) Errors() []error {
	return c.bySeverity(SeverityError)
}

func (c *Collector) bySeverity(severity Severity) []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []error
	for _, d := range c.diagnostics {
		if d.Severity == severity {
			out = append(out, d.Err)
		}
	}
	return out
}

// HasErrors returns true if any diagnostic has error severity
func (c *Collector) HasErrors() bool {
	return len(c.Errors()) > 0
}

// Len returns the number of collected diagnostics
func (c *Collector) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.diagnostics)
}

// Clear drops every collected diagnostic
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diagnostics = c.diagnostics[:0]
}

// ErrorOverlay renders the collected diagnostics as an HTML overlay that the
// development server injects into served pages after a failed build.
func (c *Collector) ErrorOverlay() string {
	diagnostics := c.Diagnostics()
	if len(diagnostics) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(`<div id="sitepress-error-overlay" style="position:fixed;inset:0;background:rgba(0,0,0,.85);color:#fff;font-family:Menlo,Monaco,monospace;font-size:14px;z-index:9999;padding:20px;overflow:auto">`)
	b.WriteString(`<div style="max-width:1000px;margin:0 auto">`)
	b.WriteString(`<div style="display:flex;justify-content:space-between;align-items:center;margin-bottom:20px">`)
	b.WriteString(`<h2 style="margin:0;color:#ff6b6b">Build Errors</h2>`)
	b.WriteString(`<button onclick="document.getElementById('sitepress-error-overlay').style.display='none'" style="background:none;border:1px solid #ccc;color:#fff;padding:5px 10px;cursor:pointer">Close</button>`)
	b.WriteString(`</div>`)

	for _, d := range diagnostics {
		color := "#ff6b6b"
		if d.Severity == SeverityWarning {
			color = "#feca57"
		}
		fmt.Fprintf(&b,
			`<div style="background:#2d3748;padding:15px;margin-bottom:15px;border-left:4px solid %s"><span style="color:%s;font-weight:bold">%s</span> <span style="color:#a0aec0;font-size:12px">%s</span><pre style="white-space:pre-wrap;margin:8px 0 0">%s</pre></div>`,
			color, color, d.Severity, d.Timestamp.Format("15:04:05"), html.EscapeString(d.Err.Error()))
	}

	b.WriteString(`</div></div>`)
	return b.String()
}
