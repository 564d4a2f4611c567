package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aurora-io/perfcache/internal/counters"
	"github.com/aurora-io/perfcache/internal/logging"
)

const (
	barWidth    = 30
	clearScreen = "\033[H\033[2J"
)

// watchRow is one counter on screen. read returns one value per bar.
type watchRow struct {
	label  string
	read   func(easing bool) []float64
	lo, hi float64
}

// watcher renders eased counter values as bars at a fixed frame rate,
// the way a lighting layer reads its counters every frame.
type watcher struct {
	rows   []watchRow
	easing bool
}

// newWatcher resolves each name in the scalar registry first, then in the
// vector registry.
func newWatcher(names []string, interval time.Duration, lo, hi float64, easing bool,
	scalars *counters.Registry[float64], vectors *counters.Registry[counters.Vector]) (*watcher, error) {
	w := &watcher{easing: easing}
	for _, raw := range names {
		name, ok := counters.ParseName(raw)
		if !ok {
			return nil, fmt.Errorf("counter %q: want category/counter/instance", raw)
		}
		row := watchRow{label: name.Counter + "/" + name.Instance, lo: lo, hi: hi}

		if _, ok := vectors.Catalog().Lookup(name); ok {
			h, err := vectors.Counter(name, interval)
			if err != nil {
				return nil, err
			}
			row.read = func(easing bool) []float64 { return h.GetValue(easing) }
		} else {
			h, err := scalars.Counter(name, interval)
			if err != nil {
				return nil, err
			}
			row.read = func(easing bool) []float64 { return []float64{h.GetValue(easing)} }
		}
		w.rows = append(w.rows, row)
	}
	return w, nil
}

// frame writes one frame of bars to out.
func (w *watcher) frame(out io.Writer) {
	labelWidth := 0
	for _, r := range w.rows {
		if n := len(r.label) + 4; n > labelWidth {
			labelWidth = n
		}
	}

	var b strings.Builder
	for _, r := range w.rows {
		values := r.read(w.easing)
		if len(values) == 0 {
			fmt.Fprintf(&b, "%-*s (no data)\n", labelWidth, r.label)
			continue
		}
		for i, v := range values {
			label := r.label
			if len(values) > 1 {
				label = fmt.Sprintf("%s[%d]", r.label, i)
			}
			fmt.Fprintf(&b, "%-*s %s %8.1f\n", labelWidth, label, bar(counters.Normalize(v, r.lo, r.hi), barWidth), v)
		}
	}
	_, _ = io.WriteString(out, b.String())
}

// run renders frames at fps until ctx is done or frames have been drawn.
// frames <= 0 means no limit.
func (w *watcher) run(ctx context.Context, out io.Writer, fps, frames int, clearFirst bool) {
	if fps <= 0 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	drawn := 0
	defer func() {
		logging.FromCtx(ctx).Debugf("watch stopped", map[string]any{"frames": drawn})
	}()

	for frames <= 0 || drawn < frames {
		if clearFirst {
			_, _ = io.WriteString(out, clearScreen)
		}
		w.frame(out)
		drawn++

		if frames > 0 && drawn >= frames {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// bar renders frac, clamped to [0,1], as a fixed-width bar. NaN draws empty.
func bar(frac float64, width int) string {
	if !(frac >= 0) {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
