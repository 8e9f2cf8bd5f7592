// internal/memory/worker.go
package memory

import (
	"context"
	"log"
	"time"
)

// DecayWorker runs the confidence decay sweep on a schedule. Decay is
// also applied lazily at read time; the sweep keeps stored confidence
// values roughly current for patients nobody is querying.
type DecayWorker struct {
	manager       *Manager
	scheduleHours int
	batchSize     int
	stopChan      chan struct{}
}

// NewDecayWorker creates a background decay worker.
func NewDecayWorker(manager *Manager, scheduleHours, batchSize int) *DecayWorker {
	if scheduleHours <= 0 {
		scheduleHours = 24
	}
	return &DecayWorker{
		manager:       manager,
		scheduleHours: scheduleHours,
		batchSize:     batchSize,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the decay loop. Blocks; run in a goroutine.
func (w *DecayWorker) Start() {
	log.Printf("[DecayWorker] Starting decay worker (runs every %d hours)", w.scheduleHours)

	ticker := time.NewTicker(time.Duration(w.scheduleHours) * time.Hour)
	defer ticker.Stop()

	// Run immediately on start
	w.runDecayCycle()

	for {
		select {
		case <-ticker.C:
			w.runDecayCycle()
		case <-w.stopChan:
			log.Printf("[DecayWorker] Stopping decay worker")
			return
		}
	}
}

// Stop gracefully stops the worker.
func (w *DecayWorker) Stop() {
	close(w.stopChan)
}

// runDecayCycle sweeps every known patient. A failure for one patient
// does not abort the cycle.
func (w *DecayWorker) runDecayCycle() {
	start := time.Now()
	ctx := context.Background()

	patients, err := w.manager.Patients(ctx)
	if err != nil {
		log.Printf("[DecayWorker] ERROR listing patients: %v", err)
		return
	}

	var processed, decayed int
	for _, patientID := range patients {
		result, err := w.manager.ApplyDecay(ctx, patientID, w.batchSize)
		if err != nil {
			log.Printf("[DecayWorker] ERROR decaying patient %s: %v", patientID, err)
			continue
		}
		processed += result.Processed
		decayed += result.Decayed
	}

	log.Printf("[DecayWorker] Decay cycle complete: %d patients, %d memories processed, %d decayed (took %s)",
		len(patients), processed, decayed, time.Since(start).Round(time.Millisecond))
}
