package uploader

import (
	"context"
	"os"
	"sync"
	"time"

	"courier/internal/enrich"
	"courier/internal/history"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/services"
	"courier/internal/telemetry"
	"courier/internal/transport"
)

// EnqueueBatch inserts the requests and runs them to terminal states.
// Requests are worked in groups of the configured ceiling; every item in a
// group finishes before the next group starts, and failures never stop the
// rest of the batch. Results come back in request order.
func (m *Manager) EnqueueBatch(ctx context.Context, reqs []Request) []Result {
	started := time.Now()
	results := make([]Result, len(reqs))
	batchSize := cap(m.slots)

	for offset := 0; offset < len(reqs); offset += batchSize {
		end := min(offset+batchSize, len(reqs))

		items := make([]*queue.Item, end-offset)
		for i, req := range reqs[offset:end] {
			item := itemFromRequest(req)
			if err := m.store.Insert(ctx, item); err != nil {
				results[offset+i] = Result{Name: req.Name, Status: queue.StatusFailed, Err: err}
				continue
			}
			items[i] = item
		}

		var wg sync.WaitGroup
		for i, item := range items {
			if item == nil {
				continue
			}
			wg.Add(1)
			go func(idx int, item *queue.Item) {
				defer wg.Done()
				results[idx] = m.runItem(ctx, item)
			}(offset+i, item)
		}
		wg.Wait()
	}

	if len(reqs) > 1 {
		succeeded, failed := 0, 0
		for _, result := range results {
			switch result.Status {
			case queue.StatusCompleted:
				succeeded++
			case queue.StatusFailed:
				failed++
			}
		}
		duration := time.Since(started)
		if err := m.notifier.NotifyBatchCompleted(ctx, succeeded, failed, duration); err != nil {
			m.logger.Warn("batch notification failed", logging.Error(err))
		}
		m.telemetry.Track(ctx, telemetry.EventBatchCompleted, map[string]any{
			"count":            len(reqs),
			"succeeded":        succeeded,
			"failed":           failed,
			"duration_seconds": duration.Seconds(),
		})
	}

	return results
}

func itemFromRequest(req Request) *queue.Item {
	item := &queue.Item{
		SourcePath:   req.Path,
		Name:         req.Name,
		Size:         req.Size,
		MimeType:     req.MimeType,
		LastModified: req.LastModified,
		Privacy:      req.Privacy,
		Category:     req.Category,
	}
	_ = item.SetTags(req.Tags)
	return item
}

// runItem walks one item through the pipeline to a terminal state.
func (m *Manager) runItem(ctx context.Context, item *queue.Item) Result {
	// A cancel issued between insert and start lands in the store.
	if current, err := m.store.GetByID(ctx, item.ID); err == nil && current != nil && current.Status == queue.StatusCancelled {
		return Result{ID: item.ID, Name: item.Name, Status: queue.StatusCancelled}
	}

	itemCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.register(item.ID, cancel)

	err := m.process(itemCtx, item)
	userCancelled := m.unregister(item.ID)

	if err != nil {
		status := services.FailureStatus(err)
		if userCancelled {
			status = queue.StatusCancelled
		}
		switch status {
		case queue.StatusCancelled:
			item.SetCancelled()
			m.logger.Info("upload cancelled",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldFileName, item.Name))
			if notifyErr := m.notifier.NotifyUploadCancelled(ctx, item.Name); notifyErr != nil {
				m.logger.Warn("cancel notification failed", logging.Error(notifyErr))
			}
		default:
			item.SetFailed(err.Error())
			m.logger.Error("upload failed",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldFileName, item.Name),
				logging.Error(err))
			if notifyErr := m.notifier.NotifyUploadFailed(ctx, item.Name, err.Error()); notifyErr != nil {
				m.logger.Warn("failure notification failed", logging.Error(notifyErr))
			}
		}
		if updateErr := m.store.Update(context.WithoutCancel(ctx), item); updateErr != nil {
			m.logger.Error("persist terminal state failed",
				logging.String(logging.FieldItemID, item.ID),
				logging.Error(updateErr))
		}
		return Result{ID: item.ID, Name: item.Name, Status: item.Status, Err: err}
	}

	return Result{
		ID:        item.ID,
		Name:      item.Name,
		Status:    item.Status,
		RemoteID:  item.RemoteID,
		RemoteURL: item.RemoteURL,
	}
}

func (m *Manager) process(ctx context.Context, item *queue.Item) error {
	if err := m.validateStage(ctx, item); err != nil {
		return err
	}
	if err := m.enrichStage(ctx, item); err != nil {
		return err
	}
	return m.transferStage(ctx, item)
}

func (m *Manager) validateStage(ctx context.Context, item *queue.Item) error {
	item.Status = queue.StatusValidating
	if err := m.store.Update(ctx, item); err != nil {
		return err
	}

	info, err := os.Stat(item.SourcePath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "validating", "stat", "source file unavailable", err)
	}
	if maxSize := m.cfg.MaxFileSizeBytes(); maxSize > 0 && info.Size() > maxSize {
		return services.Wrap(services.ErrValidation, "validating", "size", "file exceeds configured limit", nil)
	}
	// The file may have been replaced since selection; trust the disk.
	item.Size = info.Size()
	return nil
}

func (m *Manager) enrichStage(ctx context.Context, item *queue.Item) error {
	item.Status = queue.StatusProcessing
	if err := m.store.Update(ctx, item); err != nil {
		return err
	}

	meta := m.extractor.Extract(ctx, item.SourcePath, item.MimeType, item.LastModified)
	if item.MimeType == "" {
		item.MimeType = meta.MimeType
	}
	if err := item.MergeDerived(meta.Fields()); err != nil {
		return services.Wrap(services.ErrEnrichment, "processing", "merge metadata", "", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	update := m.enricher.Enrich(ctx, enrich.Input{
		Path:         item.SourcePath,
		Name:         item.Name,
		MimeType:     item.MimeType,
		LastModified: item.LastModified,
	}, enrich.Options{
		Thumbnail:   m.cfg.Enrichment.Thumbnail,
		ExtractText: m.cfg.Enrichment.ExtractText,
		Transcript:  m.cfg.Enrichment.Transcript,
		AITags:      m.cfg.Enrichment.AITags,
	})

	if err := item.MergeDerived(update.Fields()); err != nil {
		return services.Wrap(services.ErrEnrichment, "processing", "merge enrichment", "", err)
	}
	if len(update.Tags) > 0 {
		if err := item.SetTags(append(item.Tags(), update.Tags...)); err != nil {
			return services.Wrap(services.ErrEnrichment, "processing", "merge tags", "", err)
		}
	}
	if item.Category == "" && update.Category != "" {
		item.Category = update.Category
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return m.store.Update(ctx, item)
}

func (m *Manager) transferStage(ctx context.Context, item *queue.Item) error {
	if err := m.acquireSlot(ctx); err != nil {
		return err
	}
	defer m.releaseSlot()

	// The status flips only once a slot is held, so at most the ceiling's
	// worth of items ever read as uploading.
	item.Status = queue.StatusUploading
	if err := m.store.Update(ctx, item); err != nil {
		return err
	}

	sendCtx := ctx
	if timeout := time.Duration(m.cfg.Uploads.TransferTimeout) * time.Second; timeout > 0 {
		var cancelTimeout context.CancelFunc
		sendCtx, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}

	m.logger.Info("transfer started",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldFileName, item.Name),
		logging.Int64("size_bytes", item.Size))

	lastPersisted := 0
	receipt, err := m.transport.Send(sendCtx, transport.SendRequest{
		Path:     item.SourcePath,
		FileName: item.Name,
		Metadata: m.remoteMetadata(item),
		Privacy:  item.Privacy,
		Tags:     item.Tags(),
		Category: item.Category,
		Progress: func(sent, total int64) {
			if total <= 0 {
				return
			}
			item.SetProgress(int(sent * 100 / total))
			// Persist every few points so progress survives a restart
			// without hammering the store on large files.
			if item.Progress-lastPersisted >= 5 || item.Progress == 99 {
				lastPersisted = item.Progress
				_ = m.store.Update(ctx, item)
			}
		},
	})
	if err != nil {
		return err
	}

	item.SetCompleted(receipt.ID, receipt.URL)
	if err := m.store.Update(ctx, item); err != nil {
		return err
	}

	m.recordSuccess(ctx, item)
	return nil
}

func (m *Manager) remoteMetadata(item *queue.Item) map[string]any {
	meta := item.Derived()
	meta["name"] = item.Name
	meta["size"] = item.Size
	meta["mime_type"] = item.MimeType
	if !item.LastModified.IsZero() {
		meta["last_modified"] = item.LastModified.UTC().Format(time.RFC3339)
	}
	return meta
}

func (m *Manager) recordSuccess(ctx context.Context, item *queue.Item) {
	m.logger.Info("upload completed",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldFileName, item.Name),
		logging.String("remote_id", item.RemoteID))

	if m.history != nil {
		if err := m.history.Record(history.Entry{
			ID:         item.ID,
			Name:       item.Name,
			MimeType:   item.MimeType,
			Size:       item.Size,
			Category:   item.Category,
			URL:        item.RemoteURL,
			UploadedAt: time.Now().UTC(),
		}); err != nil {
			m.logger.Warn("history record failed",
				logging.String(logging.FieldItemID, item.ID),
				logging.Error(err))
		}
	}

	if err := m.notifier.NotifyUploadCompleted(ctx, item.Name, item.Size, item.RemoteURL); err != nil {
		m.logger.Warn("completion notification failed", logging.Error(err))
	}

	m.telemetry.Track(ctx, telemetry.EventFilesUploaded, map[string]any{
		"mime_type":  item.MimeType,
		"size_bytes": item.Size,
	})
}
