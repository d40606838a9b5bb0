package metricsipc

import (
	"strings"
)

// Label is a single name/value pair attached to a metric series. Label names
// and values may contain characters invalid for a particular sink. Sinks are
// expected to handle them appropriately. Different sinks have different sets
// of valid characters so it is undesirable to have restrictions on the input
// side.
type Label struct {
	Name  string
	Value string
}

// Labels is a list of labels. A Labels held by a Key is in canonical form:
// sorted by label name with at most one value per name.
type Labels []Label

// String returns a comma-separated "name=value" representation of the labels.
func (ls Labels) String() string {
	if len(ls) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, l := range ls {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(l.Name)
		sb.WriteByte('=')
		sb.WriteString(l.Value)
	}
	return sb.String()
}

// Copy returns a copy of the Labels.
func (ls Labels) Copy() Labels {
	if ls == nil {
		return nil
	}
	labelCopy := make(Labels, len(ls))
	copy(labelCopy, ls)
	return labelCopy
}

// Names returns the label names, in the order they appear.
func (ls Labels) Names() []string {
	if len(ls) == 0 {
		return nil
	}
	names := make([]string, len(ls))
	for i, l := range ls {
		names[i] = l.Name
	}
	return names
}
