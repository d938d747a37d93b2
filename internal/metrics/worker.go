package metrics

import "strconv"

// WorkerSpawned records a worker process creation.
func WorkerSpawned(live int) {
	WorkerSpawnsTotal.Inc()
	WorkersLive.Set(float64(live))
}

// WorkerExited records a worker process exit.
func WorkerExited(reason string, live int) {
	WorkerExitsTotal.WithLabelValues(reason).Inc()
	WorkersLive.Set(float64(live))
}

// WorkerResources records a sampled worker's resource usage.
func WorkerResources(workerID int, rssBytes uint64, openFDs int32) {
	label := strconv.Itoa(workerID)
	WorkerResidentMemory.WithLabelValues(label).Set(float64(rssBytes))
	WorkerOpenFDs.WithLabelValues(label).Set(float64(openFDs))
}

// AuthAttempt records a register or login outcome.
func AuthAttempt(action, result string) {
	AuthAttemptsTotal.WithLabelValues(action, result).Inc()
}
