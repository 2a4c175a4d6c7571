package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"cimars/catalog/internal/config"
	"cimars/catalog/internal/email"
	"cimars/catalog/internal/services"
)

const TypeEmailDelivery = "email:deliver"

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

const emailMaxRetry = 5

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// IAsynqClient is the enqueue side of *asynq.Client.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EmailQueue puts mail jobs on the asynq default queue.
type EmailQueue struct {
	client IAsynqClient
}

func NewEmailQueue(client IAsynqClient) *EmailQueue {
	return &EmailQueue{client: client}
}

func (q *EmailQueue) EnqueueEmail(ctx context.Context, job services.EmailJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling email task: %w", err)
	}
	info, err := q.client.EnqueueContext(ctx,
		asynq.NewTask(TypeEmailDelivery, payload),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(emailMaxRetry),
		asynq.Timeout(time.Minute),
	)
	if err != nil {
		return err
	}
	slog.Debug("email task enqueued", "task_id", info.ID, "queue", info.Queue, "template", job.Template)
	return nil
}

// TaskProcessor holds what the task handlers need.
type TaskProcessor struct {
	cfg                  *config.Config
	emailSender          email.Sender
	emailTemplateService services.IEmailTemplateService
}

func NewTaskProcessor(cfg *config.Config, emailSender email.Sender, emailTemplateService services.IEmailTemplateService) *TaskProcessor {
	return &TaskProcessor{
		cfg:                  cfg,
		emailSender:          emailSender,
		emailTemplateService: emailTemplateService,
	}
}

// NewServer builds an asynq server and its mux. The caller runs it.
func NewServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
			},
			Logger:   newAsynqLogger(),
			LogLevel: asynq.WarnLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				slog.Error("task failed",
					"type", task.Type(),
					"retry", retried,
					"max_retry", maxRetry,
					"error", err,
				)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	return srv, mux
}

// RunServer starts srv and blocks until ctx is done, then shuts it down.
// Unlike srv.Run it installs no signal handlers; the caller owns shutdown.
func RunServer(ctx context.Context, srv *asynq.Server, mux *asynq.ServeMux) error {
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("starting task server: %w", err)
	}
	<-ctx.Done()
	srv.Shutdown()
	return nil
}

func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var job services.EmailJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if job.To == "" || job.Template == "" {
		return fmt.Errorf("email task without recipient or template: %w", asynq.SkipRetry)
	}

	subject, body, err := p.emailTemplateService.Render(ctx, job.Template, job.Locale, job.Data)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("rendering %s: %w", job.Template, err)
	}
	if job.Subject != "" {
		subject = job.Subject
	}

	from := p.cfg.SmtpFromAddress
	if from == "" {
		from = "noreply@localhost"
		slog.Warn("SMTP_FROM_ADDRESS not configured, using fallback", "from", from)
	}

	raw := email.Compose(email.Message{
		From:     from,
		To:       []string{job.To},
		ReplyTo:  job.ReplyTo,
		Subject:  subject,
		Body:     body,
		Template: job.Template,
	})
	if err := p.emailSender.Send(ctx, []string{job.To}, subject, raw); err != nil {
		slog.Warn("email delivery failed", "to", job.To, "template", job.Template, "error", err)
		return err
	}

	slog.Info("email delivered", "to", job.To, "template", job.Template)
	return nil
}
