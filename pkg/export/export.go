// Package export writes runtime interval plans for other tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/chargeplan/core/model"
)

// Plan is the interval plan of one appliance computed at At.
type Plan struct {
	ApplianceID string                  `json:"appliance_id"`
	At          time.Time               `json:"at"`
	Intervals   []model.RuntimeInterval `json:"intervals"`
}

// WriteJSON writes the plans to w in JSON format.
func WriteJSON(w io.Writer, plans []Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plans)
}

// WriteCSV writes one row per interval with absolute start and end times.
func WriteCSV(w io.Writer, plans []Plan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"appliance_id", "start", "end", "min_energy_wh", "max_energy_wh", "sufficient"}); err != nil {
		return err
	}
	for _, p := range plans {
		for _, iv := range p.Intervals {
			rec := []string{
				p.ApplianceID,
				p.At.Add(time.Duration(iv.Start) * time.Second).Format(time.RFC3339),
				p.At.Add(time.Duration(iv.End) * time.Second).Format(time.RFC3339),
				strconv.Itoa(iv.MinEnergy),
				strconv.Itoa(iv.MaxEnergy),
				strconv.FormatBool(iv.Sufficient),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
