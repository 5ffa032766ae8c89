package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/reillywatson/impact/internal/errors"
)

// Formats accepted by Write.
var Formats = []string{"text", "json", "yaml"}

// Write renders rep to w as text, json or yaml.
func Write(w io.Writer, format string, rep *Report) error {
	switch format {
	case "", "text":
		return writeText(w, rep)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown format %q, use one of %s", format, strings.Join(Formats, ", ")))
	}
}

func writeText(w io.Writer, rep *Report) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Impact report for %s", rep.User)
	if rep.Since != nil || rep.Until != nil {
		fmt.Fprintf(&sb, " (%s to %s)", boundString(rep.Since), boundString(rep.Until))
	}
	sb.WriteString("\n")

	for _, o := range rep.Outcomes {
		sb.WriteString("\n")
		if o.Status == StatusUnknownMetric {
			fmt.Fprintf(&sb, "%s: unknown metric\n", o.Slug)
			continue
		}

		fmt.Fprintf(&sb, "%s (%s)\n", o.Name, o.Slug)
		fmt.Fprintf(&sb, "  %s\n", o.Result.Summary)

		keys := make([]string, 0, len(o.Result.Details))
		for k := range o.Result.Details {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, detailString(o.Result.Details[k]))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func boundString(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

// detailString prints scalars as-is and nested values as compact JSON.
func detailString(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		return fmt.Sprintf("%.2f", val)
	case int, int64, bool:
		return fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
