package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/chargeplan/core/model"
)

// File is the on-disk form of a schedule list.
type File struct {
	Schedules []model.ScheduleConfig `json:"schedules" yaml:"schedules"`
}

// LoadSchedules loads schedules from a JSON or YAML file.
func LoadSchedules(path string) ([]model.ScheduleConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	var f File
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &f)
	case ".json":
		err = json.Unmarshal(b, &f)
	default:
		return nil, fmt.Errorf("unsupported schedule format: %s", ext)
	}
	return f.Schedules, err
}

// DecodeSchedules reads schedules from r in the given format.
func DecodeSchedules(r io.Reader, format string) ([]model.ScheduleConfig, error) {
	var f File
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&f); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return f.Schedules, nil
}

// BuildSchedules validates and builds every schedule. Wall clock times are
// interpreted in loc.
func BuildSchedules(cfgs []model.ScheduleConfig, loc *time.Location) ([]model.Schedule, error) {
	res := make([]model.Schedule, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := c.Build(loc)
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", i, err)
		}
		res = append(res, s)
	}
	return res, nil
}
