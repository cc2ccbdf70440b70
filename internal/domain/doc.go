// Package domain defines the core business entities and errors: the video
// generation Task, its status state machine, the remote state vocabulary,
// and the immutable submission record.
package domain
