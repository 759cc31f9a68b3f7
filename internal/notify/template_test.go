package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplates_BuiltinsRender(t *testing.T) {
	tpl := MustTemplates()

	for key := range builtinTemplates {
		_, err := tpl.Render(key, nil)
		assert.NoError(t, err, key)
	}
}

func TestTemplates_RenderVariables(t *testing.T) {
	tpl := MustTemplates()

	r, err := tpl.Render(TemplatePaymentVerified, map[string]interface{}{
		"tenant_name":  "Alice",
		"amount":       "20000",
		"payment_date": "2025-01-05",
		"reference":    "PAY-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "付款已确认", r.Title)
	assert.Contains(t, r.Body, "Alice")
	assert.Contains(t, r.Body, "20000")
	assert.Contains(t, r.SMS, "PAY-1")
}

func TestTemplates_MissingVariablesUseDefaults(t *testing.T) {
	tpl := MustTemplates()

	r, err := tpl.Render(TemplatePaymentRejected, map[string]interface{}{"amount": "100"})
	require.NoError(t, err)
	assert.Contains(t, r.Body, "您好")
	assert.NotContains(t, r.Body, "<no value>")
	assert.NotContains(t, r.Body, "原因")
}

func TestTemplates_General(t *testing.T) {
	tpl := MustTemplates()

	r, err := tpl.Render(TemplateGeneral, map[string]interface{}{"title": "停水", "message": "明天停水"})
	require.NoError(t, err)
	assert.Equal(t, "停水", r.Title)
	assert.Equal(t, "明天停水", r.Body)

	r, err = tpl.Render(TemplateGeneral, nil)
	require.NoError(t, err)
	assert.Equal(t, "通知", r.Title)
}

func TestTemplates_RegisterAndUnknown(t *testing.T) {
	tpl := MustTemplates()

	_, err := tpl.Render("nope", nil)
	assert.Error(t, err)

	require.NoError(t, tpl.Register("custom", "Hi {{ .name | upper }}", "body", ""))
	r, err := tpl.Render("custom", map[string]interface{}{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hi BOB", r.Title)
	assert.Equal(t, "body", r.SMS)

	assert.Error(t, tpl.Register("broken", "{{ .x ", "", ""))
}
