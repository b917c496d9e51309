package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"MLNCoreService/config"
	"MLNCoreService/pkg/resilience"
	"MLNCoreService/pkg/server"

	"go.uber.org/zap"
)

// Верхняя граница таймаута доставки одного webhook-а
const maxWebhookTimeout = time.Second

// Статусы доставки для метрик
const (
	deliveryDelivered = "delivered"
	deliveryFailed    = "failed"
	deliverySkipped   = "skipped"
)

// Delivery одна доставка события на URL подписчика
type Delivery struct {
	Event   string
	URL     string
	Secret  string
	Token   string
	Payload any
}

// WebhookDispatcher отправляет события после коммита: без повторов, с коротким таймаутом,
// ошибки только логируются. На каждый URL свой circuit breaker.
type WebhookDispatcher struct {
	client   *http.Client
	breakers *resilience.Group
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// NewWebhookDispatcher создает новый экземпляр WebhookDispatcher
func NewWebhookDispatcher(cfg config.WebhookConfig, logger *zap.Logger) *WebhookDispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > maxWebhookTimeout {
		timeout = maxWebhookTimeout
	}
	threshold, reset := resilience.DefaultCircuitBreakerOptions()
	if cfg.FailureThreshold > 0 {
		threshold = cfg.FailureThreshold
	}
	if cfg.ResetTimeout > 0 {
		reset = cfg.ResetTimeout
	}

	return &WebhookDispatcher{
		client:   &http.Client{Timeout: timeout},
		breakers: resilience.NewGroup(threshold, reset, logger),
		timeout:  timeout,
		logger:   logger,
	}
}

// Dispatch асинхронно отправляет все доставки и не ждет их завершения
func (d *WebhookDispatcher) Dispatch(deliveries []Delivery) {
	for _, delivery := range deliveries {
		d.wg.Add(1)
		go func(delivery Delivery) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			_ = d.Deliver(ctx, delivery)
		}(delivery)
	}
}

// Wait ждет завершения начатых доставок (при остановке сервиса и в тестах)
func (d *WebhookDispatcher) Wait() {
	d.wg.Wait()
}

// Deliver синхронно отправляет одно событие
func (d *WebhookDispatcher) Deliver(ctx context.Context, delivery Delivery) error {
	breaker := d.breakers.Get(delivery.URL)
	err := breaker.Execute(ctx, delivery.Event, func(ctx context.Context) error {
		return d.post(ctx, delivery)
	})

	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		server.RecordWebhookDelivery(delivery.Event, deliverySkipped)
	case err != nil:
		server.RecordWebhookDelivery(delivery.Event, deliveryFailed)
		d.logger.Warn("Webhook delivery failed",
			zap.String("event", delivery.Event),
			zap.String("url", delivery.URL),
			zap.Error(err))
	default:
		server.RecordWebhookDelivery(delivery.Event, deliveryDelivered)
	}
	return err
}

func (d *WebhookDispatcher) post(ctx context.Context, delivery Delivery) error {
	body, err := json.Marshal(delivery.Payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Token", delivery.Secret)
	if delivery.Token != "" {
		req.Header.Set("Authorization", "Bearer "+delivery.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
