package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"rentflow/pkg/config"
	apperrors "rentflow/pkg/errors"
	"rentflow/pkg/metrics"
	"rentflow/pkg/queue"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Dispatcher 通知分发器：Send 入队，Run 出队渲染并投递
type Dispatcher struct {
	queue       *queue.RedisQueue
	queueName   string
	templates   *Templates
	email       Channel
	sms         Channel
	metrics     *metrics.Metrics
	log         *logrus.Logger
	pollTimeout time.Duration
}

// Option 分发器可选项
type Option func(*Dispatcher)

// WithChannels 替换邮件和短信通道
func WithChannels(email, sms Channel) Option {
	return func(d *Dispatcher) {
		d.email = email
		d.sms = sms
	}
}

// WithMetrics 记录投递指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithPollTimeout BRPOP 等待时间
func WithPollTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.pollTimeout = timeout
	}
}

// NewDispatcher 创建分发器，q 为 nil 时 Send 直接在后台投递
func NewDispatcher(q *queue.RedisQueue, cfg config.NotifyConfig, log *logrus.Logger, opts ...Option) *Dispatcher {
	email, sms := ChannelsFromConfig(cfg, log)
	d := &Dispatcher{
		queue:       q,
		queueName:   cfg.QueueName,
		templates:   MustTemplates(),
		email:       email,
		sms:         sms,
		log:         log,
		pollTimeout: 5 * time.Second,
	}
	if d.queueName == "" {
		d.queueName = "notifications"
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Templates 模板集合
func (d *Dispatcher) Templates() *Templates {
	return d.templates
}

// Send 入队后立即返回，投递结果只记录日志
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if !d.templates.Has(msg.Type) {
		return apperrors.Validation("未知的通知模板: %s", msg.Type)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.QueuedAt = time.Now().UTC()

	if d.queue == nil {
		go d.deliverAndLog(context.Background(), msg)
		return nil
	}
	if err := d.queue.Enqueue(ctx, d.queueName, msg); err != nil {
		return apperrors.Upstream(err, "通知入队失败")
	}
	return nil
}

// Deliver 同步渲染并投递到可用通道，全部通道失败时返回错误
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) ([]Result, error) {
	content, err := d.templates.Render(msg.Type, msg.Variables)
	if err != nil {
		return nil, apperrors.Validation("%v", err)
	}

	var results []Result
	if msg.Recipient.Email != "" {
		results = append(results, d.deliverTo(ctx, d.email, msg.Recipient.Email, content))
	}
	if msg.Recipient.Phone != "" {
		results = append(results, d.deliverTo(ctx, d.sms, msg.Recipient.Phone, content))
	}

	if len(results) == 0 {
		return results, nil
	}
	var failures []string
	for _, r := range results {
		if r.Success {
			return results, nil
		}
		failures = append(failures, r.Channel+": "+r.Error)
	}
	return results, apperrors.Upstream(fmt.Errorf("%s", strings.Join(failures, "; ")), "通知投递失败")
}

func (d *Dispatcher) deliverTo(ctx context.Context, ch Channel, to string, content *Rendered) Result {
	err := ch.Send(ctx, to, content)
	d.metrics.NotificationDelivered(ch.Name(), err == nil)
	if err != nil {
		return Result{Channel: ch.Name(), Success: false, Error: err.Error()}
	}
	return Result{Channel: ch.Name(), Success: true}
}

func (d *Dispatcher) deliverAndLog(ctx context.Context, msg Message) {
	results, err := d.Deliver(ctx, msg)
	entry := d.log.WithFields(logrus.Fields{
		"notification_id": msg.ID,
		"type":            msg.Type,
		"results":         results,
	})
	if err != nil {
		entry.WithError(err).Warn("通知投递失败")
		return
	}
	entry.Debug("通知已投递")
}

// ProcessOne 取出一条消息并投递，队列为空时返回 false
func (d *Dispatcher) ProcessOne(ctx context.Context) (bool, error) {
	if d.queue == nil {
		return false, fmt.Errorf("未配置通知队列")
	}
	data, err := d.queue.Dequeue(ctx, d.queueName, d.pollTimeout)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		// 无法解析的消息直接丢弃
		d.log.WithError(err).Error("解析通知消息失败")
		return true, nil
	}
	d.deliverAndLog(ctx, msg)
	return true, nil
}

// Run 循环消费队列直到 ctx 结束
func (d *Dispatcher) Run(ctx context.Context) {
	d.log.WithField("queue", d.queueName).Info("通知分发器已启动")
	for {
		select {
		case <-ctx.Done():
			d.log.Info("通知分发器已停止")
			return
		default:
		}

		if _, err := d.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.log.WithError(err).Error("读取通知队列失败")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}
