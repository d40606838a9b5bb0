package metricsipc

import (
	"sort"
)

// Key identifies a metric series: a metric name plus its labels. Keys built
// by NewKey hold labels in canonical form, so two keys describing the same
// series compare equal no matter what order their labels were supplied in.
type Key struct {
	Name   string
	Labels Labels
}

// NewKey returns a Key for name with the given labels in canonical form:
// sorted by label name, keeping only the last supplied value for a name.
func NewKey(name string, labels ...Label) Key {
	return Key{
		Name:   name,
		Labels: canonicalLabels(labels),
	}
}

func canonicalLabels(labels []Label) Labels {
	if len(labels) == 0 {
		return nil
	}
	ls := make(Labels, len(labels))
	copy(ls, labels)
	sort.SliceStable(ls, func(i, j int) bool {
		return ls[i].Name < ls[j].Name
	})
	// Stable sort keeps supply order within a name, so the last element of
	// each run is the last supplied value.
	out := ls[:0]
	for i, l := range ls {
		if i+1 < len(ls) && ls[i+1].Name == l.Name {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Equal reports whether k and other identify the same series. Both keys must
// be in canonical form, which NewKey guarantees.
func (k Key) Equal(other Key) bool {
	if k.Name != other.Name || len(k.Labels) != len(other.Labels) {
		return false
	}
	for i, l := range k.Labels {
		if other.Labels[i] != l {
			return false
		}
	}
	return true
}

// String returns the series in "name{a=1,b=2}" form.
func (k Key) String() string {
	if len(k.Labels) == 0 {
		return k.Name
	}
	return k.Name + "{" + k.Labels.String() + "}"
}
