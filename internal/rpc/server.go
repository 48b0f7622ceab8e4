package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/untoldecay/rwm/internal/debug"
	"github.com/untoldecay/rwm/internal/memory"
	"github.com/untoldecay/rwm/internal/types"
	"golang.org/x/mod/semver"
)

// ServerVersion is the version this server reports. The launcher
// stamps it from the build's version before serving.
var ServerVersion = "0.0.0"

// Server dispatches requests to the memory engine. Requests are
// processed one at a time to completion; the engine's own lock makes
// that safe even if a future transport overlaps calls.
type Server struct {
	engine        *memory.Engine
	root          string
	dbPath        string
	artifactsPath string

	startTime        time.Time
	lastActivityTime atomic.Value // time.Time
	metrics          *Metrics
	requestTimeout   time.Duration
	quit             atomic.Bool

	afterCommit     func(*memory.CommitResult)
	afterCheckpoint func(*types.Checkpoint)
}

// NewServer creates a server over an engine. The request timeout
// defaults to 30s and can be overridden with RWM_REQUEST_TIMEOUT.
func NewServer(engine *memory.Engine, root, dbPath, artifactsPath string) *Server {
	requestTimeout := 30 * time.Second
	if env := os.Getenv("RWM_REQUEST_TIMEOUT"); env != "" {
		if timeout, err := time.ParseDuration(env); err == nil && timeout > 0 {
			requestTimeout = timeout
		}
	}

	s := &Server{
		engine:         engine,
		root:           root,
		dbPath:         dbPath,
		artifactsPath:  artifactsPath,
		startTime:      time.Now(),
		metrics:        NewMetrics(),
		requestTimeout: requestTimeout,
	}
	s.lastActivityTime.Store(time.Now())
	return s
}

// OnCommit registers a callback invoked after each successful commit.
// The launcher uses it to fire lifecycle hooks.
func (s *Server) OnCommit(fn func(*memory.CommitResult)) {
	s.afterCommit = fn
}

// OnCheckpoint registers a callback invoked after each checkpoint is
// created.
func (s *Server) OnCheckpoint(fn func(*types.Checkpoint)) {
	s.afterCheckpoint = fn
}

// checkVersionCompatibility validates the client version against the
// server version. Empty and non-semver versions are tolerated (old
// clients, dev builds); a differing major version is refused.
func (s *Server) checkVersionCompatibility(clientVersion string) error {
	if clientVersion == "" {
		return nil
	}

	serverVer := ServerVersion
	if !strings.HasPrefix(serverVer, "v") {
		serverVer = "v" + serverVer
	}
	clientVer := clientVersion
	if !strings.HasPrefix(clientVer, "v") {
		clientVer = "v" + clientVer
	}
	if !semver.IsValid(serverVer) || !semver.IsValid(clientVer) {
		return nil
	}

	if semver.Major(serverVer) != semver.Major(clientVer) {
		return fmt.Errorf("incompatible major versions: client %s, server %s", clientVersion, ServerVersion)
	}
	return nil
}

func (s *Server) handleRequest(req *Request) Response {
	start := time.Now()
	defer func() {
		s.metrics.RecordRequest(req.Operation, time.Since(start))
	}()

	// Ping stays answerable across any version skew so clients can
	// always discover what they are talking to.
	if req.Operation != OpPing {
		if err := s.checkVersionCompatibility(req.ClientVersion); err != nil {
			s.metrics.RecordError(req.Operation)
			return Response{Success: false, Error: err.Error()}
		}
	}

	s.lastActivityTime.Store(time.Now())
	if req.Actor != "" {
		debug.Logf("request %s op=%s actor=%s\n", req.RequestID, req.Operation, req.Actor)
	}

	var resp Response
	switch req.Operation {
	case OpPing:
		resp = s.handlePing(req)
	case OpStatus:
		resp = s.handleStatus(req)
	case OpShutdown:
		resp = s.handleShutdown(req)
	case OpMemoryResume:
		resp = s.handleMemoryResume(req)
	case OpMemoryCommit:
		resp = s.handleMemoryCommit(req)
	case OpMemoryUpdate:
		resp = s.handleMemoryUpdate(req)
	case OpMemoryFetch:
		resp = s.handleMemoryFetch(req)
	case OpMemorySpan:
		resp = s.handleMemorySpan(req)
	case OpMemorySearch:
		resp = s.handleMemorySearch(req)
	case OpMemoryCheckpoint:
		resp = s.handleMemoryCheckpoint(req)
	default:
		s.metrics.RecordError(req.Operation)
		return Response{
			Success: false,
			Error:   fmt.Sprintf("unknown operation: %s", req.Operation),
		}
	}

	if !resp.Success {
		s.metrics.RecordError(req.Operation)
	}
	return resp
}

// reqCtx returns a context with the server's request timeout applied
// so a stalled database or pool read cannot hang the serve loop.
func (s *Server) reqCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.requestTimeout)
}

func (s *Server) handlePing(_ *Request) Response {
	return okResult("pong", PingResult{
		Message: "pong",
		Version: ServerVersion,
	})
}

func (s *Server) handleStatus(_ *Request) Response {
	ctx, cancel := s.reqCtx()
	defer cancel()

	lastActivity := s.lastActivityTime.Load().(time.Time)
	res := StatusResult{
		Version:       ServerVersion,
		Root:          s.root,
		DatabasePath:  s.dbPath,
		ArtifactsPath: s.artifactsPath,
		PID:           os.Getpid(),
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		LastActivity:  lastActivity.Format(time.RFC3339),
		Requests:      s.metrics.Snapshot(),
	}
	if stats, err := s.engine.Statistics(ctx); err == nil {
		res.Store = stats
	} else {
		debug.Logf("status: statistics unavailable: %v\n", err)
	}
	if sessions, err := s.engine.Sessions(ctx); err == nil {
		res.Sessions = sessions
	}

	text := fmt.Sprintf("rwm %s serving %s (pid %d, up %.0fs)",
		ServerVersion, res.DatabasePath, res.PID, res.UptimeSeconds)
	return okResult(text, &res)
}

func (s *Server) handleShutdown(_ *Request) Response {
	s.quit.Store(true)
	return okResult("shutting down", nil)
}

// decodeArgs unmarshals request args into dst. Missing args decode as
// an empty object so operations with all-optional fields still work.
func decodeArgs(req *Request, dst any) error {
	if len(req.Args) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Args, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
