package worker

import (
	"context"
	"log"
	"time"

	"github.com/nlaakstudios/storyboard-studio/internal/database"
	"github.com/nlaakstudios/storyboard-studio/internal/models"
	"github.com/nlaakstudios/storyboard-studio/internal/services"
)

// Worker polls build_queue for pending builds and runs them through a
// Processor, kept from the teacher's ticker-poll Worker shape.
type Worker struct {
	queueRepo    *database.QueueRepository
	buildRepo    *database.BuildRepository
	broadcaster  *services.ProgressBroadcaster
	processor    *Processor
	pollInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorker creates a new queue worker.
func NewWorker(
	queueRepo *database.QueueRepository,
	buildRepo *database.BuildRepository,
	broadcaster *services.ProgressBroadcaster,
	processor *Processor,
	pollInterval time.Duration,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		queueRepo:    queueRepo,
		buildRepo:    buildRepo,
		broadcaster:  broadcaster,
		processor:    processor,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing queue items.
func (w *Worker) Start() {
	log.Println("Queue worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.processNext()

	for {
		select {
		case <-w.ctx.Done():
			log.Println("Queue worker stopped")
			return
		case <-ticker.C:
			w.processNext()
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	log.Println("Stopping queue worker...")
	w.cancel()
}

// processNext processes the next pending queue item.
func (w *Worker) processNext() {
	item, err := w.queueRepo.GetNextPending()
	if err != nil {
		log.Printf("Error getting next pending item: %v", err)
		return
	}
	if item == nil {
		return
	}

	log.Printf("Processing queue item %d (build %s)", item.ID, item.BuildID)

	now := time.Now()
	item.Status = models.StatusProcessing
	item.StartedAt = &now
	item.CurrentStep = "Starting"
	if err := w.queueRepo.Update(item); err != nil {
		log.Printf("Error updating queue item: %v", err)
		return
	}

	w.broadcaster.BroadcastFromQueueItem(item, "Processing started")

	if err := w.processor.Process(w.ctx, item); err != nil {
		log.Printf("Error processing queue item %d: %v", item.ID, err)
		w.failQueueItem(item, err.Error())
		return
	}

	completed := time.Now()
	item.Status = models.StatusCompleted
	item.CompletedAt = &completed
	item.CurrentStep = "Completed"
	if err := w.queueRepo.Update(item); err != nil {
		log.Printf("Error updating completed queue item: %v", err)
		return
	}

	w.broadcaster.BroadcastFromQueueItem(item, "Processing completed successfully")
	log.Printf("Queue item %d completed successfully", item.ID)
}

// failQueueItem marks a queue item as failed.
func (w *Worker) failQueueItem(item *models.QueueItem, errorMsg string) {
	item.Status = models.StatusFailed
	item.ErrorMessage = errorMsg
	item.RetryCount++
	completed := time.Now()
	item.CompletedAt = &completed

	if err := w.queueRepo.Update(item); err != nil {
		log.Printf("Error updating failed queue item: %v", err)
		return
	}

	w.broadcaster.BroadcastFromQueueItem(item, "Processing failed")
	log.Printf("Queue item %d failed: %s", item.ID, errorMsg)
}
