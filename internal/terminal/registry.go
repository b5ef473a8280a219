package terminal

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/ptyd/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/monitoring"
)

// Registry maps segment ids to sessions. It is the only component that
// decides whether a session exists; everything else goes through it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	gen      uint64 // last generation handed out

	opts    Options
	sink    Sink
	logger  *zap.Logger
	metrics *monitoring.Metrics
	open    ptyOpener
}

// NewRegistry creates an empty registry. Output of every session it spawns
// goes to sink.
func NewRegistry(opts Options, sink Sink, logger *zap.Logger) *Registry {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts.withDefaults(),
		sink:     sink,
		logger:   logger.Named("terminal"),
		open:     openPTY,
	}
}

// WithMetrics attaches a metrics collector.
func (r *Registry) WithMetrics(m *monitoring.Metrics) *Registry {
	r.metrics = m
	return r
}

// Create opens a PTY for segmentID unless a session already exists, in which
// case it returns that session. created reports whether a new PTY was opened.
func (r *Registry) Create(segmentID string) (s *Session, created bool, err error) {
	if segmentID == "" {
		return nil, false, opError("create", segmentID, ErrInvalidSegment, nil)
	}

	r.mu.RLock()
	existing, ok := r.sessions[segmentID]
	r.mu.RUnlock()
	if ok {
		r.logger.Debug("Terminal session already exists, reusing", logging.Segment(segmentID))
		return existing, false, nil
	}

	// Opening a PTY is a syscall; keep it outside the map lock.
	handle, err := r.open(r.opts.Size)
	if err != nil {
		r.logger.Error("Failed to open PTY", logging.Segment(segmentID), zap.Error(err))
		return nil, false, opError("create", segmentID, ErrPtyOpen, err)
	}

	s = newSession(segmentID, handle, r)

	r.mu.Lock()
	if existing, ok := r.sessions[segmentID]; ok {
		r.mu.Unlock()
		// Lost a race with a concurrent create; keep the winner.
		handle.close()
		return existing, false, nil
	}
	r.gen++
	s.gen = r.gen
	r.sessions[segmentID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SessionCreated(count)
	r.logger.Info("Terminal session created",
		logging.Segment(segmentID),
		zap.Uint16("rows", r.opts.Size.Rows),
		zap.Uint16("cols", r.opts.Size.Cols),
	)
	return s, true, nil
}

// Get returns the session for segmentID.
func (r *Registry) Get(segmentID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[segmentID]
	r.mu.RUnlock()
	if !ok {
		return nil, opError("get", segmentID, ErrSessionNotFound, nil)
	}
	return s, nil
}

// Spawn launches the shell for segmentID.
func (r *Registry) Spawn(segmentID string, opts SpawnOptions) error {
	s, err := r.Get(segmentID)
	if err != nil {
		return opError("spawn", segmentID, ErrSessionNotFound, nil)
	}
	return s.Spawn(opts)
}

// Write sends data to the shell of segmentID.
func (r *Registry) Write(segmentID string, data []byte) error {
	s, err := r.Get(segmentID)
	if err != nil {
		return opError("write", segmentID, ErrSessionNotFound, nil)
	}
	return s.Write(data)
}

// Resize changes the PTY dimensions of segmentID.
func (r *Registry) Resize(segmentID string, size Winsize) error {
	s, err := r.Get(segmentID)
	if err != nil {
		return opError("resize", segmentID, ErrSessionNotFound, nil)
	}
	return s.Resize(size)
}

// Close removes segmentID and tears its session down. Unknown ids are not
// an error. The id is free for Create as soon as it leaves the map; the sink
// tells the old session's late events apart by generation.
func (r *Registry) Close(segmentID string) {
	r.mu.Lock()
	s, ok := r.sessions[segmentID]
	if ok {
		delete(r.sessions, segmentID)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return
	}

	s.Close()
	if rel, ok := r.sink.(Releaser); ok {
		rel.Release(s.Source())
	}
	r.metrics.SessionClosed(count)
}

// CloseAll closes every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.Close(id)
		}(id)
	}
	wg.Wait()
}

// List returns a snapshot of every session, in no particular order.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	return infos
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
