package libparser

import (
	"strings"

	"go.uber.org/zap"

	"github.com/oxhq/btstudio/internal/attr"
)

// parseAvailable reads "value[|text[|hint]]" items joined by ";". Display text equal to the
// type's pretty form is dropped so that saving does not grow the file.
func parseAvailable(d *attr.NodeAttrDesc, raw string, log *zap.Logger) []attr.AvailableValue {
	var out []attr.AvailableValue
	for _, item := range strings.Split(raw, ";") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		parts := strings.SplitN(item, "|", 3)
		v, err := d.Parse(strings.TrimSpace(parts[0]))
		if err != nil {
			log.Warn("available value skipped", zap.String("value", parts[0]), zap.Error(err))
			continue
		}
		av := attr.AvailableValue{Value: v}
		if len(parts) > 1 && parts[1] != d.Type().Pretty(v) {
			av.Text = parts[1]
		}
		if len(parts) > 2 {
			av.Hint = parts[2]
		}
		out = append(out, av)
	}
	return out
}

// formatAvailable is the inverse of parseAvailable.
func formatAvailable(d *attr.NodeAttrDesc) string {
	items := make([]string, 0, len(d.Available()))
	for _, av := range d.Available() {
		item := d.Format(av.Value)
		text := av.Text
		if text == d.Type().Pretty(av.Value) {
			text = ""
		}
		switch {
		case av.Hint != "":
			item += "|" + text + "|" + av.Hint
		case text != "":
			item += "|" + text
		}
		items = append(items, item)
	}
	return strings.Join(items, ";")
}
