// Package bus publishes detection results to NATS JetStream so downstream
// consumers (notification systems, SIEM forwarders) can react to runs
// without polling. Publishing is transport only; nothing in the core
// pipeline depends on the bus.
package bus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/loginlens-project/loginlens/internal/core"
	"github.com/loginlens-project/loginlens/internal/report"
)

// Publisher wraps NATS JetStream for alert and run-summary publishing.
// With cfg.Embedded it also runs an in-process NATS server.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	ns     *server.Server
	logger zerolog.Logger
}

// NewPublisher connects to NATS, starting an embedded server first when
// configured, and ensures the alert and run streams exist.
func NewPublisher(cfg *core.BusConfig, logger zerolog.Logger) (*Publisher, error) {
	p := &Publisher{
		logger: logger.With().Str("component", "alert_bus").Logger(),
	}

	url := cfg.URL
	if cfg.Embedded {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating NATS data dir: %w", err)
		}
		opts := &server.Options{
			Host:      "127.0.0.1",
			Port:      cfg.Port,
			JetStream: true,
			StoreDir:  cfg.DataDir,
			NoLog:     true,
			NoSigs:    true,
		}
		ns, err := server.NewServer(opts)
		if err != nil {
			return nil, fmt.Errorf("creating embedded NATS server: %w", err)
		}
		ns.Start()
		if !ns.ReadyForConnections(10 * time.Second) {
			return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
		}
		p.ns = ns
		url = fmt.Sprintf("nats://127.0.0.1:%d", cfg.Port)
		p.logger.Info().Int("port", cfg.Port).Msg("embedded NATS server started")
	}

	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			p.logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		p.shutdownServer()
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	p.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	p.js = js

	streams := []*nats.StreamConfig{
		{
			Name:      "RISK_ALERTS",
			Subjects:  []string{"risk.alerts.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    30 * 24 * time.Hour,
			MaxBytes:  512 * 1024 * 1024,
			Storage:   nats.FileStorage,
			Discard:   nats.DiscardOld,
		},
		{
			Name:      "RISK_RUNS",
			Subjects:  []string{"risk.runs"},
			Retention: nats.LimitsPolicy,
			MaxAge:    90 * 24 * time.Hour,
			MaxBytes:  64 * 1024 * 1024,
			Storage:   nats.FileStorage,
			Discard:   nats.DiscardOld,
		},
	}
	for _, sc := range streams {
		if _, err := js.AddStream(sc); err != nil {
			// Stream may exist with an older config — try update.
			if _, updateErr := js.UpdateStream(sc); updateErr != nil {
				p.Close()
				return nil, fmt.Errorf("creating/updating stream %s: %w (original: %v)", sc.Name, updateErr, err)
			}
		}
	}

	return p, nil
}

// alertSubject routes alerts by severity so consumers can subscribe to
// risk.alerts.high without sifting the rest.
func alertSubject(level core.RiskLevel) string {
	return "risk.alerts." + level.String()
}

// PublishBundle publishes every alert in a bundle plus one run summary.
func (p *Publisher) PublishBundle(b *report.Bundle) error {
	for i := range b.Alerts {
		if err := p.publishAlert(b.RunID, &b.Alerts[i]); err != nil {
			return err
		}
	}
	return p.publishRun(b)
}

func (p *Publisher) publishAlert(runID string, a *report.Alert) error {
	payload := struct {
		RunID string `json:"run_id"`
		*report.Alert
	}{RunID: runID, Alert: a}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling alert %s: %w", a.ID, err)
	}
	if _, err := p.js.Publish(alertSubject(a.Severity), data); err != nil {
		return fmt.Errorf("publishing alert %s: %w", a.ID, err)
	}
	return nil
}

func (p *Publisher) publishRun(b *report.Bundle) error {
	payload := struct {
		RunID       string                 `json:"run_id"`
		GeneratedAt time.Time              `json:"generated_at"`
		Settings    core.DetectionSettings `json:"settings"`
		Summary     report.Summary         `json:"summary"`
	}{b.RunID, b.GeneratedAt, b.Settings, b.Summary}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	if _, err := p.js.Publish("risk.runs", data); err != nil {
		return fmt.Errorf("publishing run summary: %w", err)
	}
	p.logger.Info().Str("run_id", b.RunID).Int("alerts", len(b.Alerts)).Msg("run published")
	return nil
}

// Close drains the connection and stops the embedded server if one is running.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc = nil
	}
	p.shutdownServer()
}

func (p *Publisher) shutdownServer() {
	if p.ns != nil {
		p.ns.Shutdown()
		p.ns.WaitForShutdown()
		p.ns = nil
	}
}
