package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Rendered 渲染后的内容
type Rendered struct {
	Title string
	Body  string
	SMS   string
}

type templateSource struct {
	Title string
	Body  string
	SMS   string
}

var builtinTemplates = map[string]templateSource{
	TemplatePaymentSubmitted: {
		Title: `已收到您的付款申请`,
		Body:  `{{ .tenant_name | default "您好" }}，我们已收到您于 {{ .payment_date }} 提交的 {{ .amount }} 付款（参考号 {{ .reference }}），审核后会再通知您。`,
		SMS:   `已收到付款 {{ .amount }}，参考号 {{ .reference }}，待审核。`,
	},
	TemplatePaymentRecorded: {
		Title: `付款已登记`,
		Body:  `{{ .tenant_name | default "您好" }}，房东已为您登记 {{ .amount }} 的付款（{{ .payment_date }}，参考号 {{ .reference }}）。`,
		SMS:   `已登记付款 {{ .amount }}，参考号 {{ .reference }}。`,
	},
	TemplatePaymentVerified: {
		Title: `付款已确认`,
		Body:  `{{ .tenant_name | default "您好" }}，您 {{ .payment_date }} 的付款 {{ .amount }} 已确认，参考号 {{ .reference }}。`,
		SMS:   `付款 {{ .amount }} 已确认，参考号 {{ .reference }}。`,
	},
	TemplatePaymentRejected: {
		Title: `付款未通过审核`,
		Body:  `{{ .tenant_name | default "您好" }}，您 {{ .payment_date }} 的付款 {{ .amount }} 未通过审核{{ with .reason }}，原因：{{ . }}{{ end }}。`,
		SMS:   `付款 {{ .amount }} 未通过审核{{ with .reason }}：{{ . | trunc 60 }}{{ end }}`,
	},
	TemplateMaintenanceStatus: {
		Title: `维修请求状态更新`,
		Body:  `您的维修请求「{{ .title }}」状态已更新为 {{ .status }}。`,
		SMS:   `维修请求「{{ default "" .title | trunc 30 }}」：{{ .status }}`,
	},
	TemplateRentReminder: {
		Title: `租金提醒`,
		Body:  `{{ .tenant_name | default "您好" }}，{{ .unit | default "您的单元" }} 的租金 {{ .amount }} 将于 {{ .due_date }} 到期。`,
		SMS:   `租金 {{ .amount }} 将于 {{ .due_date }} 到期。`,
	},
	TemplateLeaseExpired: {
		Title: `租约已到期`,
		Body:  `{{ .tenant_name | default "您好" }}，{{ .unit | default "您的单元" }} 的租约已于 {{ .end_date }} 到期。`,
		SMS:   `租约已于 {{ .end_date }} 到期。`,
	},
	TemplateGeneral: {
		Title: `{{ .title | default "通知" }}`,
		Body:  `{{ .message }}`,
		SMS:   `{{ default "" .message | trunc 300 }}`,
	},
}

type compiledTemplate struct {
	title *template.Template
	body  *template.Template
	sms   *template.Template
}

// Templates 通知模板集合
type Templates struct {
	items map[string]*compiledTemplate
}

// NewTemplates 编译内置模板
func NewTemplates() (*Templates, error) {
	t := &Templates{items: make(map[string]*compiledTemplate, len(builtinTemplates))}
	for key, src := range builtinTemplates {
		if err := t.Register(key, src.Title, src.Body, src.SMS); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustTemplates 编译失败直接 panic，仅用于内置模板
func MustTemplates() *Templates {
	t, err := NewTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

// Register 注册或覆盖模板，sms 为空时使用正文
func (t *Templates) Register(key, title, body, sms string) error {
	if sms == "" {
		sms = body
	}
	parse := func(part, text string) (*template.Template, error) {
		tpl, err := template.New(key + "." + part).
			Funcs(sprig.TxtFuncMap()).
			Option("missingkey=zero").
			Parse(text)
		if err != nil {
			return nil, fmt.Errorf("解析模板 %s.%s 失败: %w", key, part, err)
		}
		return tpl, nil
	}

	titleTpl, err := parse("title", title)
	if err != nil {
		return err
	}
	bodyTpl, err := parse("body", body)
	if err != nil {
		return err
	}
	smsTpl, err := parse("sms", sms)
	if err != nil {
		return err
	}
	t.items[key] = &compiledTemplate{title: titleTpl, body: bodyTpl, sms: smsTpl}
	return nil
}

// Has 模板是否存在
func (t *Templates) Has(key string) bool {
	_, ok := t.items[key]
	return ok
}

// Render 渲染模板
func (t *Templates) Render(key string, vars map[string]interface{}) (*Rendered, error) {
	tpl, ok := t.items[key]
	if !ok {
		return nil, fmt.Errorf("未知的通知模板: %s", key)
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}

	exec := func(tp *template.Template) (string, error) {
		var buf bytes.Buffer
		if err := tp.Execute(&buf, vars); err != nil {
			return "", fmt.Errorf("渲染模板 %s 失败: %w", tp.Name(), err)
		}
		// missingkey=zero 对 map 会输出 <no value>
		return strings.TrimSpace(strings.ReplaceAll(buf.String(), "<no value>", "")), nil
	}

	var r Rendered
	var err error
	if r.Title, err = exec(tpl.title); err != nil {
		return nil, err
	}
	if r.Body, err = exec(tpl.body); err != nil {
		return nil, err
	}
	if r.SMS, err = exec(tpl.sms); err != nil {
		return nil, err
	}
	return &r, nil
}
