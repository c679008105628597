package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// FormatText writes a report in human-readable form.
func FormatText(w io.Writer, r Report) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Spray Results")
	fmt.Fprintln(w, "==============================")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Duration:   %v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Attempts:   %s\n", formatNumber(r.Total()))
	fmt.Fprintf(w, "Accepted:   %s\n", formatNumber(r.Accepted))
	fmt.Fprintf(w, "Rejected:   %s\n", formatNumber(r.Rejected))
	fmt.Fprintf(w, "Errored:    %s\n", formatNumber(r.Errored))

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Accepted Credentials (%d):\n", len(r.Credentials))
	for _, c := range r.Credentials {
		fmt.Fprintf(w, "  %s\n", c)
	}

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Rejected Attempts (%d):\n", r.Rejected)
	for _, res := range r.RejectedPreview {
		fmt.Fprintf(w, "  %s\n", res.Credential())
	}
	if r.RejectedOmitted > 0 {
		fmt.Fprintf(w, "  ... and %s more rejected attempts\n", formatNumber(r.RejectedOmitted))
	}

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Errors (%d):\n", len(r.Errors))
	for _, res := range r.Errors {
		fmt.Fprintf(w, "  %s - %s\n", res.Credential(), res.Outcome.Message)
	}

	if r.Total() == 0 {
		return
	}
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Response Times:")
	fmt.Fprintf(w, "  Min:    %s\n", FormatDuration(r.Latency.Min))
	fmt.Fprintf(w, "  Avg:    %s\n", FormatDuration(r.Latency.Avg))
	fmt.Fprintf(w, "  P50:    %s\n", FormatDuration(r.Latency.P50))
	fmt.Fprintf(w, "  P95:    %s\n", FormatDuration(r.Latency.P95))
	fmt.Fprintf(w, "  Max:    %s\n", FormatDuration(r.Latency.Max))
}

// FormatJSON writes a report in JSON format.
func FormatJSON(w io.Writer, r Report) error {
	output := struct {
		Duration        string            `json:"duration"`
		Attempts        int               `json:"attempts"`
		Accepted        int               `json:"accepted"`
		Rejected        int               `json:"rejected"`
		Errored         int               `json:"errored"`
		Credentials     []jsonCredential  `json:"credentials"`
		RejectedPreview []jsonCredential  `json:"rejectedPreview"`
		RejectedOmitted int               `json:"rejectedOmitted"`
		Errors          []jsonError       `json:"errors"`
		Latency         jsonDurationStats `json:"latency"`
	}{
		Duration:        r.Duration.Round(time.Millisecond).String(),
		Attempts:        r.Total(),
		Accepted:        r.Accepted,
		Rejected:        r.Rejected,
		Errored:         r.Errored,
		Credentials:     make([]jsonCredential, 0, len(r.Credentials)),
		RejectedPreview: make([]jsonCredential, 0, len(r.RejectedPreview)),
		RejectedOmitted: r.RejectedOmitted,
		Errors:          make([]jsonError, 0, len(r.Errors)),
		Latency:         toJSONDurationStats(r.Latency),
	}

	for _, c := range r.Credentials {
		output.Credentials = append(output.Credentials, jsonCredential{Identity: c.Identity, Secret: c.Secret})
	}
	for _, res := range r.RejectedPreview {
		output.RejectedPreview = append(output.RejectedPreview, jsonCredential{Identity: res.Identity, Secret: res.Secret})
	}
	for _, res := range r.Errors {
		output.Errors = append(output.Errors, jsonError{
			Identity: res.Identity,
			Secret:   res.Secret,
			Message:  res.Outcome.Message,
			Detail:   res.ErrorDetail,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

type jsonCredential struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

type jsonError struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
	Message  string `json:"message"`
	Detail   string `json:"detail,omitempty"`
}

type jsonDurationStats struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

func toJSONDurationStats(d DurationMetrics) jsonDurationStats {
	return jsonDurationStats{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
