package forseti

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/daztec2025/forseti-recorder/internal/recorder"
)

var sessionsBucket = []byte("sessions")

// SessionStore persists finished session documents in a local bbolt file and
// answers the drill engine's history queries against them.
type SessionStore struct {
	db *bbolt.DB
}

func NewSessionStore(path string) (*SessionStore, error) {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: time.Second * 5})

	if err != nil {
		return nil, errors.Wrapf(err, "could not open session store at: %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionsBucket)
		return err
	})

	if err != nil {
		return nil, errors.Wrap(err, "could not create sessions bucket")
	}

	return &SessionStore{db: db}, nil
}

func (ss *SessionStore) Close() error {
	return ss.db.Close()
}

// SaveSession writes a finished session document. Keys sort by start time so
// iteration order follows the driving history.
func (ss *SessionStore) SaveSession(doc *recorder.SessionDocument) error {
	data, err := json.Marshal(doc)

	if err != nil {
		return errors.Wrap(err, "could not encode session document")
	}

	key := fmt.Sprintf("%s_%s", doc.SessionData.StartTime.UTC().Format(time.RFC3339Nano), uuid.New().String())

	return ss.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).Put([]byte(key), data)
	})
}

// Sessions iterates all stored session documents in start-time order.
func (ss *SessionStore) Sessions(fn func(doc *recorder.SessionDocument) error) error {
	return ss.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(k, v []byte) error {
			var doc recorder.SessionDocument

			if err := json.Unmarshal(v, &doc); err != nil {
				return errors.Wrapf(err, "could not decode session document: %s", string(k))
			}

			return fn(&doc)
		})
	})
}

// BestContiguousTime finds the driver's best historical sum of n contiguous
// timed laps on the given track/car pairing. ok is false when no stored
// session has such a window. Implements recorder.History.
func (ss *SessionStore) BestContiguousTime(trackID, carName string, n int) (float64, bool, error) {
	if n <= 0 {
		return 0, false, nil
	}

	best := 0.0
	found := false

	err := ss.Sessions(func(doc *recorder.SessionDocument) error {
		if doc.SessionData.TrackID != trackID || doc.SessionData.CarName != carName {
			return nil
		}

		if total, ok := bestWindow(doc.LapData, n); ok {
			if !found || total < best {
				best = total
				found = true
			}
		}

		return nil
	})

	if err != nil {
		return 0, false, err
	}

	return best, found, nil
}

// bestWindow scans a session's laps for the minimal contiguous n-lap sum.
// Sighting laps and untimed laps break the window rather than contributing
// a zero that would fake an impossible pace.
func bestWindow(laps []*recorder.Lap, n int) (float64, bool) {
	best := 0.0
	found := false

	var window []float64

	for _, lap := range laps {
		if lap.IsSightingLap || lap.LapTime <= 0 {
			window = nil
			continue
		}

		window = append(window, lap.LapTime)

		if len(window) > n {
			window = window[1:]
		}

		if len(window) == n {
			total := 0.0

			for _, t := range window {
				total += t
			}

			if !found || total < best {
				best = total
				found = true
			}
		}
	}

	return best, found
}
