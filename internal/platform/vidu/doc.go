// Package vidu implements the external collaborators for the generative
// video service: the remote task client (submit, poll, history) and the
// transfer gateway (three-step image upload, artifact download). All retry
// and backoff behavior lives here; callers see classified errors only.
package vidu
