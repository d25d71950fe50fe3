package workflow

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/docgen_backend/config"
	"github.com/mmdatafocus/docgen_backend/utils"
	"github.com/sirupsen/logrus"
)

// JobQueue is the optional enqueue contract. When the workflow has no queue,
// generation runs inline in the requesting goroutine.
type JobQueue interface {
	Enqueue(ctx context.Context, msg config.JobDispatchMessage) error
}

// PubSubQueue publishes dispatch messages to the worker topic.
type PubSubQueue struct{}

func NewPubSubQueue() *PubSubQueue { return &PubSubQueue{} }

func (q *PubSubQueue) Enqueue(ctx context.Context, msg config.JobDispatchMessage) error {
	return config.PublishJobDispatch(ctx, msg)
}

// RunDispatchConsumer receives dispatch messages and executes their jobs
// until ctx is cancelled. Redelivered messages are harmless: terminal jobs
// are skipped by ExecuteJob.
func RunDispatchConsumer(ctx context.Context, w *ExportWorkflow, logger *logrus.Logger) error {
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return err
	}

	subName := strings.TrimSpace(os.Getenv("JOB_DISPATCH_SUBSCRIPTION"))
	if subName == "" {
		subName = config.GetJobDispatchTopic() + "-worker"
	}
	sub := client.Subscription(subName)

	return sub.Receive(ctx, func(msgCtx context.Context, m *pubsub.Message) {
		var msg config.JobDispatchMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			config.LogError(logger, "JobDispatcher", "RunDispatchConsumer", "unmarshal", string(m.Data), err)
			m.Ack() // poison message, do not redeliver
			return
		}

		jobCtx := utils.SetBusinessIdInContext(msgCtx, msg.BusinessId)
		jobCtx = utils.SetCorrelationIdInContext(jobCtx, msg.CorrelationId)

		if err := w.ExecuteJob(jobCtx, msg.JobId); err != nil {
			config.LogError(logger, "JobDispatcher", "RunDispatchConsumer", msg.JobId, nil, err)
			m.Nack()
			return
		}
		m.Ack()
	})
}
