package spinevo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// ExportConfig configures the exporting of a simulation.
type ExportConfig struct {
	Filename  string
	OutputDir string // overrides general.output_path when set
	AsCSV     bool   // expectation values
	Collapses bool   // collapse schedule
	Timestamp bool
}

// IsUseless returns whether this config doesn't actually do anything.
func (c ExportConfig) IsUseless() bool {
	return !c.AsCSV && !c.Collapses
}

func (c ExportConfig) path(kind string) (string, error) {
	dir := c.OutputDir
	if dir == "" {
		conf, err := spinConfig()
		if err != nil {
			return "", fmt.Errorf("no output directory: %w", err)
		}
		dir = conf.outputDir
	}
	name := c.Filename
	if name == "" {
		name = "spinevo"
	}
	if c.Timestamp {
		t := time.Now()
		name = fmt.Sprintf("%s-%d-%02d-%02dT%02d.%02d.%02d", name, t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%s.csv", kind, name)), nil
}

// ExportSeries writes the series and the collapse schedule as CSV files. It returns the paths of the written files.
func ExportSeries(conf ExportConfig, series ExpectationSeries, schedule CollapseSchedule) ([]string, error) {
	if conf.IsUseless() {
		return nil, nil
	}
	var written []string
	if conf.AsCSV {
		fname, err := conf.path("expectation")
		if err != nil {
			return written, err
		}
		header := []string{"time", "step"}
		for i := 0; i < series.Particles(); i++ {
			header = append(header, fmt.Sprintf("s%d", i))
		}
		err = streamCSV(fname, "Records are <time> <step> <0.5 Z_i expectation per particle>", header, func(rows chan<- []string) {
			for k, t := range series.Times {
				row := []string{strconv.FormatFloat(t, 'g', -1, 64), strconv.Itoa(k)}
				for i := range series.Values {
					row = append(row, strconv.FormatFloat(series.Values[i][k], 'f', 12, 64))
				}
				rows <- row
			}
		})
		if err != nil {
			return written, err
		}
		written = append(written, fname)
	}
	if conf.Collapses && schedule != nil {
		fname, err := conf.path("collapses")
		if err != nil {
			return written, err
		}
		err = streamCSV(fname, "Records are <particle> <step> <time>", []string{"particle", "step", "time"}, func(rows chan<- []string) {
			for p, steps := range schedule {
				for _, step := range steps {
					t := ""
					if step < len(series.Times) {
						t = strconv.FormatFloat(series.Times[step], 'g', -1, 64)
					}
					rows <- []string{strconv.Itoa(p), strconv.Itoa(step), t}
				}
			}
		})
		if err != nil {
			return written, err
		}
		written = append(written, fname)
	}
	return written, nil
}

// streamCSV creates the file and writes every row sent by produce, from a dedicated writer goroutine.
func streamCSV(fname, description string, header []string, produce func(rows chan<- []string)) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	// Header
	if _, err = fmt.Fprintf(f, "# Creation date (UTC): %s\n# %s\n", time.Now().UTC(), description); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err = w.Write(header); err != nil {
		return err
	}

	var wg sync.WaitGroup
	var werr error
	rows := make(chan []string, 1000) // a 1k entry buffer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for row := range rows {
			if werr != nil {
				continue // Drain the channel.
			}
			werr = w.Write(row)
		}
	}()
	produce(rows)
	close(rows)
	wg.Wait()
	w.Flush()
	return errors.Join(werr, w.Error())
}
