package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/shared/blobstore"
)

// ConversionStore is the part of the job record store the converter uses
type ConversionStore interface {
	GetConversion(ctx context.Context, id string) (*domain.Conversion, error)
	SetConversionOutput(ctx context.Context, id, blobID string) error
}

// Enqueuer publishes a job id to a queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queue, jobID string) error
}

// Config holds converter dependencies
type Config struct {
	Logger       *slog.Logger
	Store        ConversionStore
	Blobs        blobstore.Store
	Transcoder   Transcoder
	Enqueuer     Enqueuer
	WebhookQueue string
	TempDir      string
}

// Converter turns a stored video into a stored gif for one conversion job
type Converter struct {
	logger       *slog.Logger
	store        ConversionStore
	blobs        blobstore.Store
	transcoder   Transcoder
	enqueuer     Enqueuer
	webhookQueue string
	tempDir      string
}

// New creates a Converter
func New(cfg *Config) *Converter {
	return &Converter{
		logger:       cfg.Logger,
		store:        cfg.Store,
		blobs:        cfg.Blobs,
		transcoder:   cfg.Transcoder,
		enqueuer:     cfg.Enqueuer,
		webhookQueue: cfg.WebhookQueue,
		tempDir:      cfg.TempDir,
	}
}

// Process runs one conversion attempt. All state is read fresh from the
// stores, so any attempt can run on any worker.
func (c *Converter) Process(ctx context.Context, msg *domain.JobMessage) domain.Outcome {
	log := c.logger.With(slog.String("job_id", msg.JobID), slog.Int("attempt", msg.Attempt))

	conversion, err := c.store.GetConversion(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrConversionNotFound) {
			log.Warn("Conversion not found, nothing to do")
			return domain.Permanent(err)
		}
		return domain.Transient(fmt.Errorf("failed to load conversion: %w", err))
	}

	if conversion.Converted() {
		log.Info("Conversion already has an output, skipping",
			slog.String("gif_file_id", *conversion.GifFileID),
		)
		return domain.Succeeded(*conversion.GifFileID)
	}

	workDir, err := os.MkdirTemp(c.tempDir, "video2gif-*")
	if err != nil {
		return domain.Transient(fmt.Errorf("failed to create work directory: %w", err))
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input")
	outputPath := filepath.Join(workDir, "output.gif")

	ownerID, err := c.materialize(ctx, conversion.VideoFileID, inputPath)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			log.Warn("Input video not found",
				slog.String("video_file_id", conversion.VideoFileID),
			)
			return domain.Permanent(err)
		}
		return domain.Transient(err)
	}

	if err := c.transcoder.Transcode(ctx, inputPath, outputPath); err != nil {
		if errors.Is(err, ErrTranscoderNotStarted) {
			return domain.Permanent(err)
		}
		return domain.Transient(err)
	}

	gifID, err := c.upload(ctx, outputPath, ownerID, log)
	if err != nil {
		return domain.Transient(err)
	}

	if err := c.store.SetConversionOutput(ctx, conversion.ID, gifID); err != nil {
		switch {
		case errors.Is(err, domain.ErrOutputAlreadySet):
			log.Warn("Output recorded by a concurrent attempt, leaving orphan blob",
				slog.String("orphan_blob_id", gifID),
			)
			return domain.Succeeded(gifID)
		case errors.Is(err, domain.ErrConversionNotFound):
			return domain.Permanent(err)
		default:
			return domain.Transient(fmt.Errorf("failed to record output: %w", err))
		}
	}

	if conversion.Webhook() != "" {
		if err := c.enqueuer.Enqueue(ctx, c.webhookQueue, conversion.ID); err != nil {
			log.Error("Conversion finished but webhook could not be enqueued",
				slog.String("gif_file_id", gifID),
				slog.Any("error", err),
			)
			return domain.Permanent(err)
		}
	}

	log.Info("Conversion finished",
		slog.String("gif_file_id", gifID),
		slog.Bool("webhook", conversion.Webhook() != ""),
	)
	return domain.Succeeded(gifID)
}

// materialize copies the input blob to path and returns the blob owner
func (c *Converter) materialize(ctx context.Context, blobID, path string) (string, error) {
	obj, err := c.blobs.Get(ctx, blobID)
	if err != nil {
		return "", err
	}
	defer obj.Body.Close()

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create input file: %w", err)
	}

	if _, err := io.Copy(f, obj.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to copy input video: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close input file: %w", err)
	}

	return obj.Metadata.OwnerID, nil
}

// upload stores the transcoder output. An empty output is accepted as is.
func (c *Converter) upload(ctx context.Context, path, ownerID string, log *slog.Logger) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open transcoder output: %w", err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		log.Warn("Transcoder produced an empty output")
	}

	id, err := c.blobs.Put(ctx, f, blobstore.Metadata{
		OwnerID:     ownerID,
		ContentType: domain.GIFContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload gif: %w", err)
	}

	return id, nil
}
