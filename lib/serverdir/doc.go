// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package serverdir reads and writes the files through which a server
// advertises itself to clients.
//
// Layout under <output_base>/server/:
//
//	command_port      loopback endpoint, "127.0.0.1:PORT"
//	request_cookie    secret the client presents on every request
//	response_cookie   secret the server echoes on every response
//	server.pid.txt    server PID, decimal
//	cmdline           server argv, NUL-joined, for startup option diffing
//	jvm.out           default server log
//
// Under <output_base>/: the install symlink and the
// exit_code_to_use_on_abrupt_exit sentinel.
//
// The server writes its PID before binding the endpoint, and the
// endpoint last, so a client that finds command_port also finds the
// PID. Files are trusted only after the PID is verified to be a live
// process owned by the current user: a crashed server leaves every file
// in place.
package serverdir
