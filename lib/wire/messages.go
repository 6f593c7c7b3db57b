// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// Actions.
const (
	ActionPing   = "ping"
	ActionRun    = "run"
	ActionCancel = "cancel"
)

// PingRequest checks that the server at an endpoint is alive and holds
// the expected cookies.
type PingRequest struct {
	Action string `cbor:"action"`
	Cookie string `cbor:"cookie"`
}

// PingResponse echoes the response cookie.
type PingResponse struct {
	Cookie string `cbor:"cookie"`
	Error  string `cbor:"error,omitempty"`
}

// StartupOption is one startup flag together with where it came from:
// an rc file path, or the empty string for the command line.
type StartupOption struct {
	Source string `cbor:"source"`
	Option []byte `cbor:"option"`
}

// RunRequest submits one command.
type RunRequest struct {
	Action string `cbor:"action"`
	Cookie string `cbor:"cookie"`

	// BlockForLock tells the server to wait for its own command lock
	// rather than fail when another command is running.
	BlockForLock bool `cbor:"block_for_lock"`

	// Preemptible allows a later command to cancel this one.
	Preemptible bool `cbor:"preemptible"`

	// ClientDescription identifies the client in server messages,
	// at minimum "pid=N".
	ClientDescription string `cbor:"client_description"`

	// Args is the command name, synthesized logging flags, and the
	// user's arguments, in that order.
	Args [][]byte `cbor:"arg"`

	InvocationPolicy string          `cbor:"invocation_policy,omitempty"`
	StartupOptions   []StartupOption `cbor:"startup_options,omitempty"`
}

// EnvironmentVariable is one entry of an exec directive.
type EnvironmentVariable struct {
	Name  []byte `cbor:"name"`
	Value []byte `cbor:"value"`
}

// ExecRequest asks the client to replace itself with another program
// once the command has finished (bazel run).
type ExecRequest struct {
	WorkingDirectory    []byte                `cbor:"working_directory"`
	Argv                [][]byte              `cbor:"argv"`
	EnvironmentVariable []EnvironmentVariable `cbor:"environment_variable,omitempty"`
}

// FailureDetail describes why a command failed, for logging.
type FailureDetail struct {
	Message string `cbor:"message"`
	Code    string `cbor:"code,omitempty"`
}

// RunResponse is one element of a run stream.
type RunResponse struct {
	Cookie         string `cbor:"cookie"`
	StandardOutput []byte `cbor:"standard_output,omitempty"`
	StandardError  []byte `cbor:"standard_error,omitempty"`

	// CommandID is set once the server has registered the command; it
	// is what a cancel request names.
	CommandID string `cbor:"command_id,omitempty"`

	// Finished marks the terminal response. ExitCode,
	// TerminationExpected, ExecRequest, and FailureDetail are only
	// meaningful when it is set.
	Finished            bool           `cbor:"finished,omitempty"`
	ExitCode            int            `cbor:"exit_code"`
	TerminationExpected bool           `cbor:"termination_expected,omitempty"`
	ExecRequest         *ExecRequest   `cbor:"exec_request,omitempty"`
	FailureDetail       *FailureDetail `cbor:"failure_detail,omitempty"`
}

// CancelRequest asks the server to interrupt a running command.
type CancelRequest struct {
	Action    string `cbor:"action"`
	Cookie    string `cbor:"cookie"`
	CommandID string `cbor:"command_id"`
}

// CancelResponse acknowledges a cancel request.
type CancelResponse struct {
	Cookie string `cbor:"cookie"`
	Error  string `cbor:"error,omitempty"`
}
