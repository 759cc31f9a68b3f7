package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"rentflow/pkg/config"

	"github.com/sirupsen/logrus"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Channel 外发通道
type Channel interface {
	Name() string
	Send(ctx context.Context, to string, content *Rendered) error
}

// ========== 邮件 ==========

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel SMTP 邮件通道
type EmailChannel struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

// NewEmailChannel 创建邮件通道
func NewEmailChannel(cfg config.NotifyConfig) *EmailChannel {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}
	return &EmailChannel{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		host:     cfg.SMTPHost,
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
	}
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, to string, content *Rendered) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.sendMail(c.addr, c.auth, c.from, []string{to}, buildMail(c.from, to, content.Title, content.Body))
}

func buildMail(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// ========== 短信 ==========

// SMSChannel HTTP 短信网关通道，POST JSON {to, from, message}
type SMSChannel struct {
	url    string
	token  string
	sender string
	client *http.Client
}

// NewSMSChannel 创建短信通道
func NewSMSChannel(cfg config.NotifyConfig) *SMSChannel {
	return &SMSChannel{
		url:    cfg.SMSURL,
		token:  cfg.SMSToken,
		sender: cfg.SMSSender,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *SMSChannel) Name() string { return ChannelSMS }

func (c *SMSChannel) Send(ctx context.Context, to string, content *Rendered) error {
	text := content.SMS
	if text == "" {
		text = content.Body
	}
	payload, err := json.Marshal(map[string]string{
		"to":      to,
		"from":    c.sender,
		"message": text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("短信网关返回错误状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// ========== 日志 ==========

// LogChannel 未配置外发通道时只记录日志
type LogChannel struct {
	name string
	log  *logrus.Logger
}

// NewLogChannel 以 name 的身份记录通知
func NewLogChannel(name string, log *logrus.Logger) *LogChannel {
	return &LogChannel{name: name, log: log}
}

func (c *LogChannel) Name() string { return c.name }

func (c *LogChannel) Send(_ context.Context, to string, content *Rendered) error {
	c.log.WithFields(logrus.Fields{
		"channel": c.name,
		"to":      to,
		"title":   content.Title,
	}).Info(content.Body)
	return nil
}

// ChannelsFromConfig 按配置选择邮件和短信通道
func ChannelsFromConfig(cfg config.NotifyConfig, log *logrus.Logger) (email Channel, sms Channel) {
	if cfg.SMTPHost != "" {
		email = NewEmailChannel(cfg)
	} else {
		email = NewLogChannel(ChannelEmail, log)
	}
	if cfg.SMSURL != "" {
		sms = NewSMSChannel(cfg)
	} else {
		sms = NewLogChannel(ChannelSMS, log)
	}
	return email, sms
}
