package forseti

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/daztec2025/forseti-recorder/internal/recorder"
)

// HandoffRef points at a staged session document. Large sessions carry tens
// of megabytes of telemetry, so the payload normally lives in a staging file
// and only this reference crosses between components. Inline holds the
// payload directly when staging storage was unavailable.
type HandoffRef struct {
	ID     string
	Path   string
	Size   int64
	Inline []byte
}

var ErrHandoffNotFound = errors.New("forseti: no staged session for reference")

// SessionHandoff serializes finished sessions into disposable staging files.
// Each staged document is fetched, and thereby deleted, exactly once.
type SessionHandoff struct {
	stagingDir string

	mutex sync.Mutex
	refs  map[string]*HandoffRef
}

func NewSessionHandoff(stagingDir string) (*SessionHandoff, error) {
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create staging directory: %s", stagingDir)
	}

	return &SessionHandoff{
		stagingDir: stagingDir,
		refs:       make(map[string]*HandoffRef),
	}, nil
}

// Finalize stages a session document and returns its reference ID.
// Implements recorder.SessionSink. A failed staging write falls back to the
// slower inline transfer; a document that cannot even be serialized is the
// caller's signal to discard the session.
func (sh *SessionHandoff) Finalize(doc *recorder.SessionDocument) (string, error) {
	data, err := json.Marshal(doc)

	if err != nil {
		return "", errors.Wrap(err, "could not serialize session document")
	}

	ref := &HandoffRef{
		ID:   uuid.New().String(),
		Size: int64(len(data)),
	}

	path := filepath.Join(sh.stagingDir, ref.ID+".json")

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		logrus.WithError(err).Warnf("Could not stage session document, falling back to inline transfer")
		ref.Inline = data
	} else {
		ref.Path = path
	}

	sh.mutex.Lock()
	sh.refs[ref.ID] = ref
	sh.mutex.Unlock()

	logrus.Debugf("Session document staged: %s (%d bytes)", ref.ID, ref.Size)

	return ref.ID, nil
}

// Fetch consumes a staged session document. The staging file is deleted and
// the reference forgotten; a second fetch for the same ID fails.
func (sh *SessionHandoff) Fetch(id string) (*recorder.SessionDocument, error) {
	sh.mutex.Lock()
	ref, ok := sh.refs[id]
	delete(sh.refs, id)
	sh.mutex.Unlock()

	if !ok {
		return nil, ErrHandoffNotFound
	}

	data := ref.Inline

	if ref.Path != "" {
		var err error

		data, err = ioutil.ReadFile(ref.Path)

		if err != nil {
			return nil, errors.Wrapf(err, "could not read staged session: %s", ref.Path)
		}

		if err := os.Remove(ref.Path); err != nil {
			logrus.WithError(err).Warnf("Could not remove staged session file: %s", ref.Path)
		}
	}

	var doc recorder.SessionDocument

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "could not decode staged session")
	}

	return &doc, nil
}
