// Package ipc carries gateway requests between windows and the daemon.
//
// Each request is one CBOR value written to a fresh connection on the
// daemon's Unix socket, answered by one CBOR Response. A subscribe request
// keeps its connection open and is followed by a stream of Event values.
package ipc

import (
	"errors"
	"fmt"

	"github.com/tommyzliu/stickies/internal/codec"
	"github.com/tommyzliu/stickies/internal/gateway"
	"github.com/tommyzliu/stickies/internal/i18n"
	"github.com/tommyzliu/stickies/internal/persist"
	"github.com/tommyzliu/stickies/internal/settings"
	"github.com/tommyzliu/stickies/internal/workspace"
)

// Method names.
const (
	MethodGetSettings      = "get-settings"
	MethodGetI18n          = "get-i18n"
	MethodGlobalDispatch   = "globalDispatch"
	MethodDispatch         = "dispatch"
	MethodSubscribe        = "subscribe"
	MethodWorkspaceCreate  = "workspace-create"
	MethodWorkspaceList    = "workspace-list"
	MethodWorkspaceCurrent = "workspace-current"
	MethodWorkspaceBegin   = "workspace-begin"
	MethodWorkspaceCommit  = "workspace-commit"
	MethodWorkspaceAbort   = "workspace-abort"
	MethodAvatarAdd        = "avatar-add"
	MethodAvatarRemove     = "avatar-remove"
)

// EventGlobalStoreChanged names the push sent after every settings change.
const EventGlobalStoreChanged = "globalStoreChanged"

// Request is the wire form of every call. Fields beyond Method are read
// only by the methods that need them.
type Request struct {
	Method      string              `cbor:"method"`
	Action      *settings.RawAction `cbor:"action,omitempty"`
	Name        string              `cbor:"name,omitempty"`
	WorkspaceID string              `cbor:"workspaceId,omitempty"`
	URL         string              `cbor:"url,omitempty"`
}

// Response wraps the result of a call. Data holds the method's result
// type, CBOR encoded, when OK is true and the method returns one.
type Response struct {
	OK    bool             `cbor:"ok"`
	Code  ErrorCode        `cbor:"code,omitempty"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Event is pushed on a subscribe connection.
type Event struct {
	Name     string         `cbor:"event"`
	Settings settings.State `cbor:"settings"`
}

// I18nResult answers get-i18n.
type I18nResult struct {
	Language string        `cbor:"language" json:"language"`
	Messages i18n.Messages `cbor:"messages" json:"messages"`
}

// CreateResult answers workspace-create.
type CreateResult struct {
	WorkspaceID string `cbor:"workspaceId" json:"workspaceId"`
}

// WorkspaceInfo describes one workspace.
type WorkspaceInfo struct {
	ID      string   `cbor:"id" json:"id"`
	Name    string   `cbor:"name" json:"name"`
	Avatars []string `cbor:"avatars" json:"avatars"`
}

// ListResult answers workspace-list.
type ListResult struct {
	Workspaces   []WorkspaceInfo `cbor:"workspaces" json:"workspaces"`
	CurrentID    string          `cbor:"currentId" json:"currentId"`
	LastID       string          `cbor:"lastId" json:"lastId"`
	ChangingToID string          `cbor:"changingToId,omitempty" json:"changingToId,omitempty"`
}

// CurrentResult answers workspace-current.
type CurrentResult struct {
	WorkspaceInfo
	URL string `cbor:"url" json:"url"`
}

// ErrorCode classifies a failed call.
type ErrorCode string

const (
	CodeWorkspaceNotFound   ErrorCode = "WorkspaceNotFound"
	CodeBusy                ErrorCode = "Busy"
	CodeNoPendingTransition ErrorCode = "NoPendingTransition"
	CodePersistenceFailure  ErrorCode = "PersistenceFailure"
	CodeInvalidRequest      ErrorCode = "InvalidRequest"
	CodeInternal            ErrorCode = "Internal"
)

// ErrInvalidRequest is the client-side sentinel for CodeInvalidRequest.
var ErrInvalidRequest = errors.New("invalid request")

var codeSentinels = []struct {
	code ErrorCode
	err  error
}{
	{CodeWorkspaceNotFound, workspace.ErrWorkspaceNotFound},
	{CodeBusy, workspace.ErrBusy},
	{CodeNoPendingTransition, workspace.ErrNoPendingTransition},
	{CodePersistenceFailure, persist.ErrPersistence},
	{CodeInvalidRequest, settings.ErrInvalidAction},
	{CodeInvalidRequest, ErrInvalidRequest},
	{CodeInternal, gateway.ErrInternal},
}

// CodeOf maps err onto the wire error code.
func CodeOf(err error) ErrorCode {
	for _, cs := range codeSentinels {
		if errors.Is(err, cs.err) {
			return cs.code
		}
	}
	return CodeInternal
}

// RemoteError is a failure reported by the daemon. It unwraps to the
// sentinel for its code, so errors.Is works the same on both sides of the
// socket.
type RemoteError struct {
	Method  string
	Code    ErrorCode
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed (%s): %s", e.Method, e.Code, e.Message)
}

func (e *RemoteError) Unwrap() []error {
	var errs []error
	for _, cs := range codeSentinels {
		if cs.code == e.Code {
			errs = append(errs, cs.err)
		}
	}
	return errs
}
