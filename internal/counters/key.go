package counters

import (
	"strings"
	"time"
)

// Name identifies a counter independently of how often it is sampled.
type Name struct {
	Category string
	Counter  string
	Instance string
}

// String renders the name as category/counter/instance.
func (n Name) String() string {
	return n.Category + "/" + n.Counter + "/" + n.Instance
}

// At returns the key sampling this counter every interval.
func (n Name) At(interval time.Duration) Key {
	return Key{
		Category: n.Category,
		Counter:  n.Counter,
		Instance: n.Instance,
		Interval: interval,
	}
}

// ParseName parses the category/counter/instance form produced by String.
// The instance may itself contain slashes.
func ParseName(s string) (Name, bool) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return Name{}, false
	}
	return Name{Category: parts[0], Counter: parts[1], Instance: parts[2]}, true
}

// Key identifies one cached handle. The interval is part of the identity, so
// the same counter read at two cadences yields two handles.
type Key struct {
	Category string
	Counter  string
	Instance string
	Interval time.Duration
}

// Name returns the key without its interval.
func (k Key) Name() Name {
	return Name{Category: k.Category, Counter: k.Counter, Instance: k.Instance}
}

func (k Key) String() string {
	return k.Name().String() + "@" + k.Interval.String()
}
