package bootstrap

import (
	"errors"
	"testing"

	"github.com/arcentrix/storyflow/internal/engine/config"
	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/stretchr/testify/assert"
)

// TestReloadServices verifies a reloaded webhook secret replaces the one in use.
func TestReloadServices(t *testing.T) {
	webhook := service.NewWebhookService(service.WebhookConf{Secret: "old"}, nil, nil, nil, nil, nil, nil)
	services := &service.Services{Webhook: webhook}
	body := []byte(`{"action":"opened"}`)

	assert.NoError(t, webhook.VerifySignature(body, scm.SignHmacSha256Hex(body, "old")))

	reloadServices(services)(config.AppConfig{Webhook: service.WebhookConf{Secret: "new"}})

	err := webhook.VerifySignature(body, scm.SignHmacSha256Hex(body, "old"))
	assert.True(t, errors.Is(err, service.ErrInvalidSignature))
	assert.NoError(t, webhook.VerifySignature(body, scm.SignHmacSha256Hex(body, "new")))
}
