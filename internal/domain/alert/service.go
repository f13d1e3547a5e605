package alert

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/gustwatch/gustwatch/internal/domain/weather"
	apperrors "github.com/gustwatch/gustwatch/pkg/errors"
)

// WeatherSource provides the forecast the evaluator runs against.
type WeatherSource interface {
	Snapshot(ctx context.Context) (weather.Snapshot, error)
}

// Config wires runtime knobs for the alert pipeline.
type Config struct {
	Lookahead     time.Duration
	Place         string
	BatchSize     int
	BatchDelay    time.Duration
	PublicBaseURL string
	// MissingKeys names the provider credentials absent from the
	// environment; a send attempted with no configured channel fails
	// fast naming them.
	MissingKeys []string
}

// ManualAlert is an operator-triggered alert payload.
type ManualAlert struct {
	Level        string
	WindSpeedKMH float64
	Time         time.Time
	Message      string
	Place        string
}

// SendResult reports the outcome of the pipeline for one subscriber.
type SendResult struct {
	SubscriberID uuid.UUID `json:"subscriberId"`
	Level        string    `json:"level"`
	Sent         bool      `json:"sent"`
	Suppressed   bool      `json:"suppressed"`
	Outcome      Outcome   `json:"outcome"`
	Error        string    `json:"error,omitempty"`
}

// BulkReport aggregates a fan-out over many subscribers.
type BulkReport struct {
	Results   []SendResult `json:"results"`
	Attempted int          `json:"attempted"`
	Delivered int          `json:"delivered"`
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Provider  string       `json:"provider"`
	Evaluated int          `json:"evaluated"`
	Results   []SendResult `json:"results"`
}

// Service drives the evaluate-gate-dispatch pipeline.
type Service interface {
	RunCycle(ctx context.Context) (CycleReport, error)
	SendManual(ctx context.Context, req ManualAlert) (BulkReport, error)
	SendTest(ctx context.Context, id uuid.UUID) (SendResult, error)
	Subscribe(ctx context.Context, sub Subscriber) (Subscriber, error)
	GetSubscriber(ctx context.Context, id uuid.UUID) (Subscriber, error)
	Unsubscribe(ctx context.Context, token string) (uuid.UUID, error)
}

type service struct {
	cfg        Config
	weather    WeatherSource
	repo       SubscriberRepository
	gate       *Gate
	dispatcher *Dispatcher
	signer     *TokenSigner
	clock      clockwork.Clock
	logger     *slog.Logger
	onEvaluate func(level Level)
}

// NewService wires the alert pipeline. onEvaluate receives per-level
// accounting and may be nil.
func NewService(cfg Config, ws WeatherSource, repo SubscriberRepository, gate *Gate, dispatcher *Dispatcher, signer *TokenSigner, clock clockwork.Clock, logger *slog.Logger, onEvaluate func(level Level)) Service {
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 8 * time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &service{
		cfg:        cfg,
		weather:    ws,
		repo:       repo,
		gate:       gate,
		dispatcher: dispatcher,
		signer:     signer,
		clock:      clock,
		logger:     logger.With("component", "alert.service"),
		onEvaluate: onEvaluate,
	}
}

// RunCycle fetches weather once and evaluates every active subscriber
// against the forecast window.
func (s *service) RunCycle(ctx context.Context) (CycleReport, error) {
	snap, err := s.weather.Snapshot(ctx)
	if err != nil {
		return CycleReport{}, err
	}
	subs, err := s.repo.ListActive(ctx)
	if err != nil {
		return CycleReport{}, apperrors.Wrap("storage_error", "failed to list subscribers", err)
	}

	results := s.sendBulk(ctx, subs, func(sub Subscriber) (*Evaluation, error) {
		return Evaluate(snap.Forecast, sub.ThresholdKMH, s.cfg.Lookahead, s.clock.Now())
	})

	report := CycleReport{Provider: snap.Provider, Evaluated: len(subs), Results: results}
	s.logger.Info("alert cycle complete",
		"provider", snap.Provider, "subscribers", len(subs), "alerts", countSent(results))
	return report, nil
}

// SendManual fans an operator-provided alert out to all active
// subscribers. When no explicit level is given each subscriber's own
// threshold classifies the wind value.
func (s *service) SendManual(ctx context.Context, req ManualAlert) (BulkReport, error) {
	if err := s.requireSenders(); err != nil {
		return BulkReport{}, err
	}

	var (
		fixedLevel Level
		haveLevel  bool
	)
	if strings.TrimSpace(req.Level) != "" {
		parsed, err := ParseLevel(req.Level)
		if err != nil {
			return BulkReport{}, apperrors.Wrap("invalid_input", "level is not a known alert level", err)
		}
		fixedLevel = parsed
		haveLevel = true
	}

	subs, err := s.repo.ListActive(ctx)
	if err != nil {
		return BulkReport{}, apperrors.Wrap("storage_error", "failed to list subscribers", err)
	}

	at := req.Time
	if at.IsZero() {
		at = s.clock.Now()
	}
	results := s.sendBulk(ctx, subs, func(sub Subscriber) (*Evaluation, error) {
		level := fixedLevel
		if !haveLevel {
			if sub.ThresholdKMH <= 0 {
				return nil, apperrors.New("invalid_input", "subscriber threshold must be positive")
			}
			level = Classify(req.WindSpeedKMH, sub.ThresholdKMH)
		}
		if level == LevelNormal {
			return nil, nil
		}
		return &Evaluation{Level: level, MaxWindKMH: req.WindSpeedKMH, TriggerTime: at}, nil
	}, withOverrides(req.Message, req.Place))

	return summarize(results), nil
}

// SendTest pushes a caution-level test alert through the full pipeline
// for one subscriber, bypassing the evaluator but not the gate.
func (s *service) SendTest(ctx context.Context, id uuid.UUID) (SendResult, error) {
	if err := s.requireSenders(); err != nil {
		return SendResult{}, err
	}
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return SendResult{}, err
	}
	eval := &Evaluation{Level: LevelCaution, MaxWindKMH: sub.ThresholdKMH, TriggerTime: s.clock.Now()}
	return s.evaluateAndSend(ctx, sub, func(Subscriber) (*Evaluation, error) { return eval, nil }, "This is a test alert.", s.cfg.Place), nil
}

// Subscribe validates and persists an opt-in or settings change.
func (s *service) Subscribe(ctx context.Context, sub Subscriber) (Subscriber, error) {
	if sub.ThresholdKMH <= 0 {
		return Subscriber{}, apperrors.New("invalid_input", "windThreshold must be positive")
	}
	if len(sub.Channels) == 0 {
		return Subscriber{}, apperrors.New("invalid_input", "at least one channel must be enabled")
	}
	for _, ch := range sub.Channels {
		if _, ok := ParseChannel(string(ch)); !ok {
			return Subscriber{}, apperrors.New("invalid_input", "unknown channel "+string(ch))
		}
		if !sub.HasContact(ch) {
			return Subscriber{}, apperrors.New("invalid_input", "missing contact info for channel "+string(ch))
		}
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.Active = true
	stored, err := s.repo.Upsert(ctx, sub)
	if err != nil {
		return Subscriber{}, apperrors.Wrap("storage_error", "failed to store subscriber", err)
	}
	return stored, nil
}

func (s *service) GetSubscriber(ctx context.Context, id uuid.UUID) (Subscriber, error) {
	return s.repo.Get(ctx, id)
}

// Unsubscribe verifies a signed opt-out token and soft-deactivates the
// subscriber it names.
func (s *service) Unsubscribe(ctx context.Context, token string) (uuid.UUID, error) {
	id, err := s.signer.Verify(token)
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if apperrors.IsCode(err, "not_found") {
			return uuid.Nil, err
		}
		return uuid.Nil, apperrors.Wrap("storage_error", "failed to deactivate subscriber", err)
	}
	s.logger.Info("subscriber unsubscribed", "subscriber", id)
	return id, nil
}

type sendOption func(*sendOverrides)

type sendOverrides struct {
	message string
	place   string
}

func withOverrides(message, place string) sendOption {
	return func(o *sendOverrides) {
		o.message = message
		o.place = place
	}
}

// sendBulk processes subscribers in fixed-size batches with an
// inter-batch delay so downstream providers are not overwhelmed. Every
// subscriber settles independently; one failure never blocks the rest.
func (s *service) sendBulk(ctx context.Context, subs []Subscriber, evaluate func(Subscriber) (*Evaluation, error), opts ...sendOption) []SendResult {
	var o sendOverrides
	for _, opt := range opts {
		opt(&o)
	}
	place := o.place
	if place == "" {
		place = s.cfg.Place
	}

	results := make([]SendResult, len(subs))
	for start := 0; start < len(subs); start += s.cfg.BatchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				for i := start; i < len(subs); i++ {
					results[i] = SendResult{SubscriberID: subs[i].ID, Level: LevelNormal.String(), Error: ctx.Err().Error()}
				}
				return results
			case <-s.clock.After(s.cfg.BatchDelay):
			}
		}

		end := start + s.cfg.BatchSize
		if end > len(subs) {
			end = len(subs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = s.evaluateAndSend(ctx, subs[i], evaluate, o.message, place)
			}(i)
		}
		wg.Wait()
	}
	return results
}

// evaluateAndSend runs the full per-subscriber pipeline: evaluate, gate,
// build event, dispatch, record.
func (s *service) evaluateAndSend(ctx context.Context, sub Subscriber, evaluate func(Subscriber) (*Evaluation, error), message, place string) SendResult {
	result := SendResult{SubscriberID: sub.ID, Level: LevelNormal.String()}

	eval, err := evaluate(sub)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if eval == nil {
		return result
	}
	result.Level = eval.Level.String()
	if s.onEvaluate != nil {
		s.onEvaluate(eval.Level)
	}

	ok, err := s.gate.ShouldSend(ctx, sub, eval.Level)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if !ok {
		result.Suppressed = true
		return result
	}

	event := NewEvent(sub, eval.Level, eval.MaxWindKMH, eval.TriggerTime, place, message)
	if sub.HasChannel(ChannelEmail) && sub.HasContact(ChannelEmail) {
		if link, err := s.unsubscribeLink(sub.ID); err == nil {
			event.UnsubscribeURL = link
		} else {
			s.logger.Warn("unsubscribe link unavailable", "subscriber", sub.ID, "error", err)
		}
	}

	result.Outcome = s.dispatcher.Dispatch(ctx, event, sub)
	result.Sent = result.Outcome.Any()

	// Bookkeeping is advisory; the suppression store already holds the
	// authoritative claim.
	if err := s.repo.RecordAlert(ctx, sub.ID, s.clock.Now(), eval.Level); err != nil {
		s.logger.Warn("failed to record alert on subscriber", "subscriber", sub.ID, "error", err)
	}
	return result
}

func (s *service) unsubscribeLink(id uuid.UUID) (string, error) {
	if s.signer == nil || s.cfg.PublicBaseURL == "" {
		return "", apperrors.New("missing_config", "public base URL or unsubscribe secret not configured")
	}
	token, err := s.signer.Issue(id, s.clock.Now())
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/api/v1/unsubscribe?token=" + url.QueryEscape(token), nil
}

func (s *service) requireSenders() error {
	if s.dispatcher.Configured(ChannelEmail) || s.dispatcher.Configured(ChannelSMS) || s.dispatcher.Configured(ChannelPush) {
		return nil
	}
	msg := "no notification channel is configured"
	if len(s.cfg.MissingKeys) > 0 {
		msg += "; missing keys: " + strings.Join(s.cfg.MissingKeys, ", ")
	}
	return apperrors.New("missing_config", msg)
}

func summarize(results []SendResult) BulkReport {
	report := BulkReport{Results: results}
	for _, r := range results {
		if r.Level != LevelNormal.String() && !r.Suppressed && r.Error == "" {
			report.Attempted++
		}
		if r.Sent {
			report.Delivered++
		}
	}
	return report
}

func countSent(results []SendResult) int {
	n := 0
	for _, r := range results {
		if r.Sent {
			n++
		}
	}
	return n
}
