package catalog

import "strings"

// Format renders the tables named in include as readable schema text for a
// grounding prompt. A nil include renders every table in the descriptor.
// Unknown names are ignored.
func Format(d Descriptor, include []string) string {
	var sb strings.Builder
	for _, t := range d.Tables {
		if include != nil && !containsFold(include, t.Name) {
			continue
		}
		sb.WriteString(t.Name + ":\n")
		for _, col := range t.Columns {
			if len(col.SampleValues) > 0 {
				sb.WriteString("  - " + col.Name + " (" + col.Type + ") values: " + strings.Join(col.SampleValues, ", ") + "\n")
			} else {
				sb.WriteString("  - " + col.Name + " (" + col.Type + ")\n")
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func containsFold(xs []string, want string) bool {
	for _, x := range xs {
		if strings.EqualFold(x, want) {
			return true
		}
	}
	return false
}
