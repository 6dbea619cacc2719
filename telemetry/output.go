package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/windlayer/config"
	"github.com/pthm-cable/windlayer/layer"
)

// SourceRecord is one layer source event.
type SourceRecord struct {
	Frame int32  `csv:"frame"`
	Layer string `csv:"layer"`
	Kind  string `csv:"kind"`
	URL   string `csv:"url"`
	Seq   uint64 `csv:"seq"`
	Error string `csv:"error"`
}

// NewSourceRecord flattens a layer event.
func NewSourceRecord(frame int32, ev layer.Event) SourceRecord {
	r := SourceRecord{
		Frame: frame,
		Layer: ev.Layer,
		Kind:  string(ev.Kind),
		URL:   ev.URL,
		Seq:   ev.Seq,
	}
	if ev.Err != nil {
		r.Error = ev.Err.Error()
	}
	return r
}

// csvFile appends records to one CSV file, writing the header once.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func appendCSV[T any](c *csvFile, rec T) error {
	records := []T{rec}
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir       string
	perf      *csvFile
	sources   *csvFile
	fields    *csvFile
	particles *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, out := range []struct {
		name string
		dst  **csvFile
	}{
		{"perf.csv", &om.perf},
		{"sources.csv", &om.sources},
		{"fields.csv", &om.fields},
		{"particles.csv", &om.particles},
	} {
		f, err := os.Create(filepath.Join(dir, out.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", out.name, err)
		}
		*out.dst = &csvFile{f: f}
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	if err := appendCSV(om.perf, stats.ToCSV(windowEnd)); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteSource writes a source event to sources.csv.
func (om *OutputManager) WriteSource(rec SourceRecord) error {
	if om == nil {
		return nil
	}
	if err := appendCSV(om.sources, rec); err != nil {
		return fmt.Errorf("writing source: %w", err)
	}
	return nil
}

// WriteField writes vector field statistics to fields.csv.
func (om *OutputManager) WriteField(stats FieldStats) error {
	if om == nil {
		return nil
	}
	if err := appendCSV(om.fields, stats); err != nil {
		return fmt.Errorf("writing field stats: %w", err)
	}
	return nil
}

// WriteParticles writes particle statistics to particles.csv.
func (om *OutputManager) WriteParticles(stats ParticleStats) error {
	if om == nil {
		return nil
	}
	if err := appendCSV(om.particles, stats); err != nil {
		return fmt.Errorf("writing particle stats: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, c := range []*csvFile{om.perf, om.sources, om.fields, om.particles} {
		if c == nil {
			continue
		}
		if err := c.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
