package research

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"docpipe/internal/log"
)

// ErrAlreadyRunning indicates the connector already has an active
// research job.
var ErrAlreadyRunning = errors.New("research: generation already running for connector")

// JobStatus is the externally visible state of one background job.
type JobStatus struct {
	JobID       string `json:"job_id"`
	ConnectorID string `json:"connector_id"`
	Running     bool   `json:"running"`
}

type job struct {
	id          string
	connectorID string
	cancel      context.CancelFunc
	done        chan struct{}
}

// Manager runs research generations as background jobs, keyed by job ID.
// One job per connector at a time; jobs are removed from the registry on
// completion or cancellation.
type Manager struct {
	agent *Agent
	store *Store
	log   log.Logger

	mu   sync.Mutex
	jobs map[string]*job
}

// NewManager creates a job manager over the given agent and store.
func NewManager(agent *Agent, store *Store, logger log.Logger) (*Manager, error) {
	if agent == nil {
		return nil, fmt.Errorf("research: agent is nil")
	}
	if store == nil {
		return nil, fmt.Errorf("research: store is nil")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{agent: agent, store: store, log: logger, jobs: make(map[string]*job)}, nil
}

// Start launches research generation for the connector and returns the
// job ID. The job runs until done or cancelled; its failure never
// affects other jobs.
func (m *Manager) Start(connectorID string) (string, error) {
	if _, ok := m.store.Get(connectorID); !ok {
		return "", fmt.Errorf("research: connector %q not found", connectorID)
	}

	m.mu.Lock()
	for _, j := range m.jobs {
		if j.connectorID == connectorID {
			m.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrAlreadyRunning, connectorID)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:          uuid.NewString(),
		connectorID: connectorID,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	m.jobs[j.id] = j
	m.mu.Unlock()

	go m.run(ctx, j)
	return j.id, nil
}

func (m *Manager) run(ctx context.Context, j *job) {
	defer func() {
		j.cancel()
		close(j.done)
		m.mu.Lock()
		delete(m.jobs, j.id)
		m.mu.Unlock()
	}()

	err := m.agent.Generate(ctx, j.connectorID)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// The agent already moved the connector to the cancelled state.
	default:
		m.log.Error("research job failed", "job_id", j.id, "connector", j.connectorID, "error", err)
	}
}

// Status reports the job, or false if it is unknown or already finished.
func (m *Manager) Status(jobID string) (JobStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return JobStatus{JobID: j.id, ConnectorID: j.connectorID, Running: true}, true
}

// JobForConnector returns the active job ID for the connector, if any.
func (m *Manager) JobForConnector(connectorID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.connectorID == connectorID {
			return j.id, true
		}
	}
	return "", false
}

// Cancel requests cancellation of the job and waits for it to stop. The
// job observes the cancel at its next section boundary. Returns false
// for an unknown or already finished job.
func (m *Manager) Cancel(jobID string) bool {
	m.mu.Lock()
	j, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	j.cancel()
	<-j.done
	return true
}

// Shutdown cancels every running job and waits for them to stop, or for
// ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	jobs := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		jobs = append(jobs, j)
	}
	m.mu.Unlock()

	for _, j := range jobs {
		j.cancel()
	}
	for _, j := range jobs {
		select {
		case <-j.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
