// Package ssh provides the SSH client used to reach provisioned
// instances: command execution, reachability probes, and SFTP
// directory upload for release artifacts.
//
// Authentication is private-key only. Host keys are verified against a
// known_hosts file when strict checking is enabled; the negotiated host
// key fingerprint is captured during the handshake and exposed on the
// client so callers can record it alongside the environment.
package ssh
