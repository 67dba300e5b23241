package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tommyzliu/stickies/internal/broadcast"
	"github.com/tommyzliu/stickies/internal/codec"
	"github.com/tommyzliu/stickies/internal/gateway"
	"github.com/tommyzliu/stickies/internal/i18n"
	"github.com/tommyzliu/stickies/internal/settings"
	"github.com/tommyzliu/stickies/internal/workspace"
)

const (
	readTimeout    = 30 * time.Second
	writeTimeout   = 10 * time.Second
	maxRequestSize = 1024 * 1024
)

// Backend is the gateway surface the server exposes.
type Backend interface {
	Settings() settings.State
	I18n() (string, i18n.Messages)
	GlobalDispatch(ctx context.Context, raw settings.RawAction) error
	Dispatch(ctx context.Context, actions ...settings.Action) (settings.State, error)
	Subscribe(w broadcast.Window) (unsubscribe func())

	CreateWorkspace(ctx context.Context, name string) (string, error)
	Workspaces() []workspace.Entry
	Registry() gateway.Registry
	CurrentWorkspace() (workspace.Workspace, string, error)
	BeginTransition(ctx context.Context, id string) error
	CommitTransition(ctx context.Context) error
	AbortTransition(ctx context.Context) error
	AddAvatar(ctx context.Context, id, url string) error
	RemoveAvatar(ctx context.Context, id, url string) error
}

type handlerFunc func(ctx context.Context, req Request) (any, error)

// Server answers requests on a Unix socket.
type Server struct {
	socketPath string
	backend    Backend
	logger     *slog.Logger
	handlers   map[string]handlerFunc

	ready     chan struct{}
	readyOnce sync.Once
	active    sync.WaitGroup
}

// NewServer creates a server for backend that will listen on socketPath.
func NewServer(socketPath string, backend Backend, logger *slog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		backend:    backend,
		logger:     logger,
		ready:      make(chan struct{}),
	}
	s.handlers = map[string]handlerFunc{
		MethodGetSettings:      s.getSettings,
		MethodGetI18n:          s.getI18n,
		MethodGlobalDispatch:   s.globalDispatch,
		MethodDispatch:         s.dispatch,
		MethodWorkspaceCreate:  s.createWorkspace,
		MethodWorkspaceList:    s.listWorkspaces,
		MethodWorkspaceCurrent: s.currentWorkspace,
		MethodWorkspaceBegin:   s.beginTransition,
		MethodWorkspaceCommit:  s.commitTransition,
		MethodWorkspaceAbort:   s.abortTransition,
		MethodAvatarAdd:        s.addAvatar,
		MethodAvatarRemove:     s.removeAvatar,
	}
	return s
}

// Ready is closed once the socket is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens on the socket until ctx is cancelled, then waits for open
// connections to finish. A stale socket file is replaced; the socket file
// is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("failed to restrict socket permissions: %w", err)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("ipc server listening", "path", s.socketPath)
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var req Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, req.Method, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}

	logger := s.logger.With("connection", connID, "method", req.Method)

	if req.Method == MethodSubscribe {
		s.stream(ctx, conn, logger)
		return
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		s.writeError(conn, req.Method, fmt.Errorf("%w: unknown method %q", ErrInvalidRequest, req.Method))
		return
	}

	result, err := handler(ctx, req)
	if err != nil {
		logger.Debug("request failed", "error", err)
		s.writeError(conn, req.Method, err)
		return
	}
	s.writeSuccess(conn, result)
}

// stream turns conn into a broadcast subscriber until either side closes.
func (s *Server) stream(ctx context.Context, conn net.Conn, logger *slog.Logger) {
	conn.SetReadDeadline(time.Time{})
	s.writeSuccess(conn, nil)

	unsubscribe := s.backend.Subscribe(&connWindow{conn: conn, encoder: codec.NewEncoder(conn)})
	defer unsubscribe()
	logger.Debug("subscriber attached")

	// The peer never sends after subscribing; a read returning means it
	// hung up.
	closed := make(chan struct{})
	go func() {
		io.Copy(io.Discard, conn)
		close(closed)
	}()

	select {
	case <-ctx.Done():
	case <-closed:
	}
	logger.Debug("subscriber detached")
}

// connWindow delivers events to one subscribe connection. The bus calls
// Send from a single goroutine per subscription.
type connWindow struct {
	conn    net.Conn
	encoder *codec.Encoder
}

func (w *connWindow) Send(_ context.Context, state settings.State) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.encoder.Encode(Event{Name: EventGlobalStoreChanged, Settings: state})
}

func (s *Server) writeError(conn net.Conn, method string, err error) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if encErr := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Code:  CodeOf(err),
		Error: err.Error(),
	}); encErr != nil {
		s.logger.Debug("failed to write error response", "method", method, "error", encErr)
	}
}

func (s *Server) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, "", fmt.Errorf("failed to marshal response: %w", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func (s *Server) getSettings(context.Context, Request) (any, error) {
	return s.backend.Settings(), nil
}

func (s *Server) getI18n(context.Context, Request) (any, error) {
	lang, messages := s.backend.I18n()
	return I18nResult{Language: lang, Messages: messages}, nil
}

func (s *Server) globalDispatch(ctx context.Context, req Request) (any, error) {
	if req.Action == nil {
		return nil, fmt.Errorf("%w: missing action", ErrInvalidRequest)
	}
	return nil, s.backend.GlobalDispatch(ctx, *req.Action)
}

// dispatch applies the action and answers with the resulting settings.
func (s *Server) dispatch(ctx context.Context, req Request) (any, error) {
	if req.Action == nil {
		return nil, fmt.Errorf("%w: missing action", ErrInvalidRequest)
	}
	action, err := settings.ParseAction(*req.Action)
	if err != nil {
		return nil, err
	}
	return s.backend.Dispatch(ctx, action)
}

func (s *Server) createWorkspace(ctx context.Context, req Request) (any, error) {
	id, err := s.backend.CreateWorkspace(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return CreateResult{WorkspaceID: id}, nil
}

func (s *Server) listWorkspaces(context.Context, Request) (any, error) {
	entries := s.backend.Workspaces()
	reg := s.backend.Registry()

	result := ListResult{
		Workspaces:   make([]WorkspaceInfo, 0, len(entries)),
		CurrentID:    reg.CurrentID,
		LastID:       reg.LastID,
		ChangingToID: reg.ChangingToID,
	}
	for _, e := range entries {
		result.Workspaces = append(result.Workspaces, WorkspaceInfo{ID: e.ID, Name: e.Name, Avatars: e.Avatars})
	}
	return result, nil
}

func (s *Server) currentWorkspace(context.Context, Request) (any, error) {
	ws, url, err := s.backend.CurrentWorkspace()
	if err != nil {
		return nil, err
	}
	return CurrentResult{
		WorkspaceInfo: WorkspaceInfo{ID: s.backend.Registry().CurrentID, Name: ws.Name, Avatars: ws.Avatars},
		URL:           url,
	}, nil
}

func (s *Server) beginTransition(ctx context.Context, req Request) (any, error) {
	return nil, s.backend.BeginTransition(ctx, req.WorkspaceID)
}

func (s *Server) commitTransition(ctx context.Context, _ Request) (any, error) {
	return nil, s.backend.CommitTransition(ctx)
}

func (s *Server) abortTransition(ctx context.Context, _ Request) (any, error) {
	return nil, s.backend.AbortTransition(ctx)
}

func (s *Server) addAvatar(ctx context.Context, req Request) (any, error) {
	return nil, s.backend.AddAvatar(ctx, req.WorkspaceID, req.URL)
}

func (s *Server) removeAvatar(ctx context.Context, req Request) (any, error) {
	return nil, s.backend.RemoveAvatar(ctx, req.WorkspaceID, req.URL)
}
