package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/tommyzliu/stickies/internal/codec"
	"github.com/tommyzliu/stickies/internal/settings"
)

const (
	dialTimeout         = 5 * time.Second
	responseReadTimeout = 45 * time.Second
	maxResponseSize     = 1024 * 1024
)

// Client talks to a daemon's socket. Each call opens its own connection.
type Client struct {
	socketPath string
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// Call sends req and decodes the result into result, which may be nil.
// A failure reported by the daemon is returned as *RemoteError.
func (c *Client) Call(ctx context.Context, req Request, result any) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(responseReadTimeout))
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return c.wrap(ctx, req.Method, "failed to write request", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return c.wrap(ctx, req.Method, "failed to read response", err)
	}

	if !response.OK {
		return &RemoteError{Method: req.Method, Code: response.Code, Message: response.Error}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", req.Method, err)
		}
	}
	return nil
}

// Subscribe calls fn with every globalStoreChanged snapshot, starting with
// the current one, until ctx is cancelled or the daemon goes away. It
// returns nil when ctx ends the subscription.
func (c *Client) Subscribe(ctx context.Context, fn func(settings.State)) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetDeadline(time.Now().Add(responseReadTimeout))
	if err := codec.NewEncoder(conn).Encode(Request{Method: MethodSubscribe}); err != nil {
		return c.wrap(ctx, MethodSubscribe, "failed to write request", err)
	}

	decoder := codec.NewDecoder(conn)

	var response Response
	if err := decoder.Decode(&response); err != nil {
		return c.wrap(ctx, MethodSubscribe, "failed to read response", err)
	}
	if !response.OK {
		return &RemoteError{Method: MethodSubscribe, Code: response.Code, Message: response.Error}
	}
	conn.SetDeadline(time.Time{})

	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("daemon closed the subscription")
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		if event.Name != EventGlobalStoreChanged {
			continue
		}
		fn(event.Settings)
	}
}

// Settings fetches the current GlobalState.
func (c *Client) Settings(ctx context.Context) (settings.State, error) {
	var state settings.State
	err := c.Call(ctx, Request{Method: MethodGetSettings}, &state)
	return state, err
}

// I18n fetches the active language and message table.
func (c *Client) I18n(ctx context.Context) (I18nResult, error) {
	var result I18nResult
	err := c.Call(ctx, Request{Method: MethodGetI18n}, &result)
	return result, err
}

// GlobalDispatch sends an action without waiting for it to be applied.
func (c *Client) GlobalDispatch(ctx context.Context, action settings.RawAction) error {
	return c.Call(ctx, Request{Method: MethodGlobalDispatch, Action: &action}, nil)
}

// Dispatch sends an action, waits for it to be applied and returns the
// resulting settings.
func (c *Client) Dispatch(ctx context.Context, action settings.RawAction) (settings.State, error) {
	var state settings.State
	err := c.Call(ctx, Request{Method: MethodDispatch, Action: &action}, &state)
	return state, err
}

// CreateWorkspace creates a workspace and returns its id.
func (c *Client) CreateWorkspace(ctx context.Context, name string) (string, error) {
	var result CreateResult
	err := c.Call(ctx, Request{Method: MethodWorkspaceCreate, Name: name}, &result)
	return result.WorkspaceID, err
}

// ListWorkspaces returns every workspace and the registry ids.
func (c *Client) ListWorkspaces(ctx context.Context) (ListResult, error) {
	var result ListResult
	err := c.Call(ctx, Request{Method: MethodWorkspaceList}, &result)
	return result, err
}

// CurrentWorkspace returns the current workspace and its URL.
func (c *Client) CurrentWorkspace(ctx context.Context) (CurrentResult, error) {
	var result CurrentResult
	err := c.Call(ctx, Request{Method: MethodWorkspaceCurrent}, &result)
	return result, err
}

// BeginTransition starts switching to workspace id.
func (c *Client) BeginTransition(ctx context.Context, id string) error {
	return c.Call(ctx, Request{Method: MethodWorkspaceBegin, WorkspaceID: id}, nil)
}

// CommitTransition completes the pending switch.
func (c *Client) CommitTransition(ctx context.Context) error {
	return c.Call(ctx, Request{Method: MethodWorkspaceCommit}, nil)
}

// AbortTransition cancels the pending switch.
func (c *Client) AbortTransition(ctx context.Context) error {
	return c.Call(ctx, Request{Method: MethodWorkspaceAbort}, nil)
}

// AddAvatar appends url to workspace id.
func (c *Client) AddAvatar(ctx context.Context, id, url string) error {
	return c.Call(ctx, Request{Method: MethodAvatarAdd, WorkspaceID: id, URL: url}, nil)
}

// RemoveAvatar removes the first avatar of workspace id equal to url.
func (c *Client) RemoveAvatar(ctx context.Context, id, url string) error {
	return c.Call(ctx, Request{Method: MethodAvatarRemove, WorkspaceID: id, URL: url}, nil)
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.socketPath, err)
	}
	return conn, nil
}

// wrap prefers the context error when cancellation closed the connection.
func (c *Client) wrap(ctx context.Context, method, msg string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", method, ctxErr)
	}
	return fmt.Errorf("%s: %s: %w", method, msg, err)
}
