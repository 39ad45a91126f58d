package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MRamiBalles/reactor-sim/internal/events"
)

// Sheet names in exported workbooks.
const (
	TelemetrySheet = "Telemetry"
	JournalSheet   = "Journal"
)

// DefaultExportName returns a timestamped workbook path under dir.
func DefaultExportName(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("reactor_telemetry_%s.xlsx", time.Now().Format("20060102_150405")))
}

// ExportWorkbook writes samples and journal entries to an .xlsx file at
// path, creating its directory if needed.
func ExportWorkbook(path string, samples []Sample, journal []events.ReactorEvent) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(TelemetrySheet); err != nil {
		return fmt.Errorf("creating telemetry sheet: %w", err)
	}
	if _, err := f.NewSheet(JournalSheet); err != nil {
		return fmt.Errorf("creating journal sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	headers := []any{"Sim Time (s)", "Temperature (C)", "Power Output (kW)", "Power Load (kW)",
		"Fission Rate (%)", "Turbine Output (%)", "Fuel (%)", "Status", "Status Flags"}
	if err := f.SetSheetRow(TelemetrySheet, "A1", &headers); err != nil {
		return fmt.Errorf("writing telemetry header: %w", err)
	}
	for i, s := range samples {
		row := []any{
			s.SimTime,
			s.Temperature,
			s.PowerOutput,
			s.PowerLoad,
			s.FissionRate,
			s.TurbineOutput,
			s.FuelCondition,
			uint32(s.Status),
			s.Status.String(),
		}
		if err := f.SetSheetRow(TelemetrySheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("writing telemetry row %d: %w", i, err)
		}
	}

	journalHeaders := []any{"Seq", "Sim Time (s)", "Timestamp", "Type", "Actor", "Payload"}
	if err := f.SetSheetRow(JournalSheet, "A1", &journalHeaders); err != nil {
		return fmt.Errorf("writing journal header: %w", err)
	}
	for i, e := range journal {
		payload := ""
		if len(e.Payload) > 0 {
			b, err := json.Marshal(e.Payload)
			if err != nil {
				return fmt.Errorf("encoding payload of event %s: %w", e.ID, err)
			}
			payload = string(b)
		}
		row := []any{e.Seq, e.SimTime, e.Timestamp.Format(time.RFC3339), string(e.Type), e.ActorID, payload}
		if err := f.SetSheetRow(JournalSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return fmt.Errorf("writing journal row %d: %w", i, err)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}
