package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Manager persists each stage's output under <root>/job_<id>/<stage>.json
// with a metadata sidecar. At most one payload exists per (job, stage);
// re-saving overwrites. Checkpoints are a resume optimization, never the
// source of truth for job completion.
type Manager struct {
	root string
	log  *logrus.Logger
}

// Metadata is the sidecar written next to every payload.
type Metadata struct {
	JobID   uint              `json:"job_id"`
	Stage   Stage             `json:"stage"`
	SavedAt time.Time         `json:"saved_at"`
	Extra   map[string]string `json:"extra,omitempty"`
}

func NewManager(root string, log *logrus.Logger) (*Manager, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "minuteflow-checkpoints")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Manager{root: root, log: log}, nil
}

func (m *Manager) jobDir(jobID uint) string {
	return filepath.Join(m.root, fmt.Sprintf("job_%d", jobID))
}

func (m *Manager) payloadPath(jobID uint, stage Stage) string {
	return filepath.Join(m.jobDir(jobID), string(stage)+".json")
}

func (m *Manager) metaPath(jobID uint, stage Stage) string {
	return filepath.Join(m.jobDir(jobID), string(stage)+".meta.json")
}

// Save writes the stage payload and its metadata sidecar, overwriting any
// previous checkpoint for the same (job, stage). Writes are not atomic
// across a process crash; Validate catches decode failures on resume.
func (m *Manager) Save(jobID uint, stage Stage, payload any, extra map[string]string) error {
	if err := os.MkdirAll(m.jobDir(jobID), 0o755); err != nil {
		return err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("checkpoint %s: marshal: %w", stage, err)
	}
	if err := os.WriteFile(m.payloadPath(jobID, stage), b, 0o644); err != nil {
		return err
	}

	meta := Metadata{JobID: jobID, Stage: stage, SavedAt: time.Now().UTC(), Extra: extra}
	mb, _ := json.Marshal(meta)
	if err := os.WriteFile(m.metaPath(jobID, stage), mb, 0o644); err != nil {
		return err
	}

	if m.log != nil {
		m.log.WithFields(logrus.Fields{"job_id": jobID, "stage": stage}).Debug("checkpoint saved")
	}
	return nil
}

// Load decodes the stage payload into dst. Returns false when no
// checkpoint exists.
func (m *Manager) Load(jobID uint, stage Stage, dst any) (bool, error) {
	b, err := os.ReadFile(m.payloadPath(jobID, stage))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("checkpoint %s: decode: %w", stage, err)
	}
	return true, nil
}

// Has reports whether any payload file exists for (job, stage).
func (m *Manager) Has(jobID uint, stage Stage) bool {
	_, err := os.Stat(m.payloadPath(jobID, stage))
	return err == nil
}

// Validate reports whether the checkpoint exists, decodes into its stage
// schema, and passes the stage validator.
func (m *Manager) Validate(jobID uint, stage Stage) bool {
	dst := newPayload(stage)
	if dst == nil {
		return false
	}
	ok, err := m.Load(jobID, stage, dst)
	if !ok || err != nil {
		return false
	}
	return dst.Validate() == nil
}

// ListCompleted returns the stages with valid checkpoints, in stage order.
func (m *Manager) ListCompleted(jobID uint) []Stage {
	var out []Stage
	for _, stage := range StageOrder {
		if m.Validate(jobID, stage) {
			out = append(out, stage)
		}
	}
	return out
}

// Clear removes every checkpoint for the job.
func (m *Manager) Clear(jobID uint) error {
	return os.RemoveAll(m.jobDir(jobID))
}

// Extra reads the metadata sidecar for (job, stage), if present.
func (m *Manager) Meta(jobID uint, stage Stage) (*Metadata, error) {
	b, err := os.ReadFile(m.metaPath(jobID, stage))
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
