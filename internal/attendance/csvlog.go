package attendance

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/logging"
)

var csvHeader = []string{"Name", "Timestamp", "Date", "Time", "Confidence"}

// CSVLog mirrors events into attendance_YYYY-MM-DD.csv files.
type CSVLog struct {
	dir string
	mu  sync.Mutex
}

// NewCSVLog creates a mirror writing into dir.
func NewCSVLog(dir string) *CSVLog {
	return &CSVLog{dir: dir}
}

// Path returns the CSV file for a calendar date.
func (l *CSVLog) Path(date string) string {
	return filepath.Join(l.dir, "attendance_"+date+".csv")
}

// Append writes one row, creating the file with a header when needed.
func (l *CSVLog) Append(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	path := l.Path(ev.Date)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	local := ev.At.In(time.Local)
	row := []string{
		ev.PersonID,
		local.Format(time.DateTime),
		ev.Date,
		local.Format(time.TimeOnly),
		strconv.FormatFloat(logging.Confidence(ev.Confidence), 'f', 4, 64),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}
