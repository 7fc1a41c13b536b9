package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/internal/worker/converter"
	"github.com/cuongbtq/video2gif/internal/worker/notifier"
	"github.com/cuongbtq/video2gif/internal/worker/workertest"
	"github.com/cuongbtq/video2gif/shared/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pipelineOwner = "2f7f0d8e-52c5-4c55-a7cf-6d7b5fb3a0e1"

type pipeline struct {
	broker   *fakeBroker
	retrier  *fakeRetrier
	store    *workertest.Store
	blobs    *blobstore.LocalStore
	enqueuer *workertest.Enqueuer
	videoID  string
}

// startPipeline wires both job handlers to one worker the way the worker
// service does, with redelivery happening immediately
func startPipeline(t *testing.T, transcoderArgs []string) *pipeline {
	t.Helper()

	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	videoID, err := blobs.Put(context.Background(), strings.NewReader("frames"), blobstore.Metadata{
		OwnerID:     pipelineOwner,
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	broker := newFakeBroker(domain.QueueConversions, domain.QueueWebhooks)
	p := &pipeline{
		broker:  broker,
		retrier: &fakeRetrier{broker: broker},
		store:   workertest.NewStore(),
		blobs:   blobs,
		enqueuer: &workertest.Enqueuer{
			OnEnqueue: func(queue, jobID string) {
				broker.deliverJob(queue, domain.JobMessage{JobID: jobID})
			},
		},
		videoID: videoID,
	}

	conv := converter.New(&converter.Config{
		Logger:       discardLogger(),
		Store:        p.store,
		Blobs:        blobs,
		Transcoder:   converter.NewProcess("sh", transcoderArgs, 5*time.Second),
		Enqueuer:     p.enqueuer,
		WebhookQueue: domain.QueueWebhooks,
		TempDir:      t.TempDir(),
	})
	notify := notifier.New(discardLogger(), p.store, time.Second)

	startWorker(t, broker, p.retrier, 1,
		Route{Queue: domain.QueueConversions, Handler: conv, Policy: FixedPolicy{Retries: 3, Interval: 30 * time.Second}},
		Route{Queue: domain.QueueWebhooks, Handler: notify, Policy: ExponentialPolicy{Retries: 8, Base: time.Second, Max: 10 * time.Minute}},
	)
	return p
}

func (p *pipeline) submit(webhookURL string) string {
	jobID := p.store.Add(pipelineOwner, p.videoID, webhookURL)
	p.broker.deliverJob(domain.QueueConversions, domain.JobMessage{JobID: jobID})
	return jobID
}

var copyInput = []string{"-c", `cp "$0" "$1"`, "{input}", "{output}"}

func TestPipeline_ConvertsAndNotifies(t *testing.T) {
	payloads := make(chan domain.WebhookPayload, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload domain.WebhookPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		payloads <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	p := startPipeline(t, copyInput)
	jobID := p.submit(hook.URL)

	assert.Equal(t, settlement{queue: domain.QueueConversions, acked: true}, p.broker.next(t))
	assert.Equal(t, settlement{queue: domain.QueueWebhooks, acked: true}, p.broker.next(t))

	conversion := p.store.Get(jobID)
	require.True(t, conversion.Converted())

	require.Len(t, payloads, 1)
	assert.Equal(t, domain.WebhookPayload{
		ID:          jobID,
		VideoFileID: p.videoID,
		GifFileID:   *conversion.GifFileID,
	}, <-payloads)

	obj, err := p.blobs.Get(context.Background(), *conversion.GifFileID)
	require.NoError(t, err)
	defer obj.Body.Close()
	assert.Equal(t, domain.GIFContentType, obj.Metadata.ContentType)
	assert.Equal(t, pipelineOwner, obj.Metadata.OwnerID)

	assert.Empty(t, p.retrier.Calls())
}

func TestPipeline_TranscoderKeepsFailing(t *testing.T) {
	p := startPipeline(t, []string{"-c", "echo unsupported codec >&2; exit 1"})
	jobID := p.submit("http://127.0.0.1:1/hook")

	for attempt := 0; attempt < 3; attempt++ {
		assert.Equal(t, settlement{queue: domain.QueueConversions, attempt: attempt, acked: true}, p.broker.next(t))
	}
	assert.Equal(t, settlement{queue: domain.QueueConversions, attempt: 3}, p.broker.next(t))

	assert.False(t, p.store.Get(jobID).Converted())
	assert.Empty(t, p.enqueuer.Calls())

	calls := p.retrier.Calls()
	require.Len(t, calls, 3)
	for i, call := range calls {
		assert.Equal(t, domain.QueueConversions, call.queue)
		assert.Equal(t, i+1, call.msg.Attempt)
		assert.Equal(t, 30*time.Second, call.delay)
	}
}

func TestPipeline_WebhookKeepsFailing(t *testing.T) {
	hits := make(chan struct{}, 16)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer hook.Close()

	p := startPipeline(t, copyInput)
	jobID := p.submit(hook.URL)

	assert.Equal(t, settlement{queue: domain.QueueConversions, acked: true}, p.broker.next(t))
	for attempt := 0; attempt < 8; attempt++ {
		assert.Equal(t, settlement{queue: domain.QueueWebhooks, attempt: attempt, acked: true}, p.broker.next(t))
	}
	assert.Equal(t, settlement{queue: domain.QueueWebhooks, attempt: 8}, p.broker.next(t))

	assert.True(t, p.store.Get(jobID).Converted())
	assert.Len(t, hits, 9)

	calls := p.retrier.Calls()
	require.Len(t, calls, 8)
	prev := time.Duration(0)
	for i, call := range calls {
		assert.Equal(t, domain.QueueWebhooks, call.queue)
		assert.Equal(t, i+1, call.msg.Attempt)
		assert.Greater(t, call.delay, prev)
		prev = call.delay
	}
}

func TestPipeline_WebhookRecovers(t *testing.T) {
	var hits atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	p := startPipeline(t, copyInput)
	jobID := p.submit(hook.URL)

	assert.Equal(t, settlement{queue: domain.QueueConversions, acked: true}, p.broker.next(t))
	for attempt := 0; attempt < 4; attempt++ {
		assert.Equal(t, settlement{queue: domain.QueueWebhooks, attempt: attempt, acked: true}, p.broker.next(t))
	}

	assert.True(t, p.store.Get(jobID).Converted())
	assert.Equal(t, int32(4), hits.Load())

	calls := p.retrier.Calls()
	require.Len(t, calls, 3)
	for i, call := range calls {
		assert.Equal(t, domain.QueueWebhooks, call.queue)
		assert.Equal(t, i+1, call.msg.Attempt)
	}

	select {
	case s := <-p.broker.settled:
		t.Fatalf("unexpected settlement after delivery: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
}
