package probes

// DiskProbe reports how full the filesystem holding path is.
type DiskProbe struct {
	src  DiskSource
	path string
}

// NewDiskProbe creates a disk probe for path.
func NewDiskProbe(src DiskSource, path string) *DiskProbe {
	if path == "" {
		path = "/"
	}
	return &DiskProbe{src: src, path: path}
}

// UsedPercent returns the used share of the filesystem.
func (p *DiskProbe) UsedPercent() (float64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return p.src.UsedPercent(ctx, p.path)
}
