// Package cluster runs one worker process per available CPU and keeps that
// many alive.
//
// The binary plays both parts. A process started without PREFORK_WORKER_ID
// in its environment is the primary: it never serves requests, it only
// re-executes itself once per worker slot and replaces any worker that exits.
// A process started with the variable set is a worker and runs the service.
// The role is fixed for the lifetime of the process.
package cluster

import (
	"strconv"
)

// EnvWorkerID marks a process as a worker and carries its slot number.
const EnvWorkerID = "PREFORK_WORKER_ID"

// Role is the part a process plays.
type Role int

const (
	RolePrimary Role = iota
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleWorker:
		return "worker"
	default:
		return "unknown"
	}
}

// DetectRole decides the role from the environment. It returns the worker
// slot for workers and 0 for the primary. A missing or malformed slot means
// primary.
func DetectRole(getenv func(string) string) (Role, int) {
	raw := getenv(EnvWorkerID)
	if raw == "" {
		return RolePrimary, 0
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return RolePrimary, 0
	}
	return RoleWorker, id
}
