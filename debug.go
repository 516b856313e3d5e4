package forseti

import (
	"archive/zip"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/daztec2025/forseti-recorder/internal/recorder"
)

// Debugger bundles everything needed to diagnose a misbehaving recorder
// install into one downloadable zip: the active configuration, the bridge
// process logs and a summary of the stored session history.
type Debugger struct {
	config  *Config
	process *BridgeProcess
	store   *SessionStore
}

func NewDebugger(config *Config, process *BridgeProcess, store *SessionStore) *Debugger {
	return &Debugger{config: config, process: process, store: store}
}

func (d *Debugger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Add("Content-Disposition", fmt.Sprintf(`attachment;filename="forseti_debug_bundle_%s.zip"`, time.Now().Format("2006-01-02_15_04")))
	w.Header().Add("Content-Type", "application/zip")

	if err := d.BuildDebugInfo(w); err != nil {
		logrus.WithError(err).Error("Could not build debug information")
		http.Error(w, "Could not build debug information", http.StatusInternalServerError)
		return
	}
}

func (d *Debugger) BuildDebugInfo(w io.Writer) (err error) {
	z := zip.NewWriter(w)
	defer func() {
		closeErr := z.Close()

		if err == nil {
			err = closeErr
		}
	}()

	if err := d.writeConfig(z); err != nil {
		return err
	}

	if err := d.writeBridgeLogs(z); err != nil {
		return err
	}

	return d.writeSessionSummary(z)
}

func (d *Debugger) writeConfig(z *zip.Writer) error {
	f, err := z.Create("config.yml")

	if err != nil {
		return err
	}

	data, err := yaml.Marshal(d.config)

	if err != nil {
		return err
	}

	_, err = f.Write(data)

	return err
}

func (d *Debugger) writeBridgeLogs(z *zip.Writer) error {
	f, err := z.Create("bridge.log")

	if err != nil {
		return err
	}

	_, err = io.WriteString(f, d.process.Logs())

	return err
}

func (d *Debugger) writeSessionSummary(z *zip.Writer) error {
	f, err := z.Create("sessions.txt")

	if err != nil {
		return err
	}

	return d.store.Sessions(func(doc *recorder.SessionDocument) error {
		_, err := fmt.Fprintf(f, "%s  %s / %s  laps=%d  fastest=%.3f\n",
			doc.SessionData.StartTime.Format(time.RFC3339),
			doc.SessionData.TrackID,
			doc.SessionData.CarName,
			len(doc.LapData),
			doc.SessionData.FastestLapTime,
		)

		return err
	})
}
