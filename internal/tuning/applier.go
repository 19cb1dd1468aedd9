// Package tuning applies critic recommendations to running bots.
package tuning

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"trading-botcore/internal/botconfig"
	"trading-botcore/internal/critic"
	"trading-botcore/internal/journal"
	"trading-botcore/internal/metrics"
	"trading-botcore/internal/model"
)

// EventParameterChange is the journal event kind written for every applied change.
const EventParameterChange = "parameter_change"

var (
	// ErrStale is returned when the recommendation was computed against a
	// value the bot no longer has.
	ErrStale = errors.New("tuning: recommendation is stale")
	// ErrPasscode is returned when an operator passcode is missing or wrong.
	ErrPasscode = errors.New("tuning: invalid passcode")
	// ErrUnknownBot is returned for bots that were never registered.
	ErrUnknownBot = errors.New("tuning: unknown bot")
	// ErrNotPending is returned when the report has no unapplied
	// recommendation for the parameter.
	ErrNotPending = errors.New("tuning: no pending recommendation")
)

// Target is a bot whose configuration can be read and swapped.
type Target interface {
	Config() *botconfig.Config
	UpdateConfig(cfg *botconfig.Config)
}

// Request asks for one recommendation of a report to be applied.
type Request struct {
	BotID    string
	ReportID string
	Param    botconfig.Param
	Passcode string
	// Auto marks requests issued by automation for bots with auto_apply set.
	Auto bool
}

type bot struct {
	mu     sync.Mutex // one application in flight
	target Target
}

// Applier validates and applies parameter changes.
type Applier struct {
	mu   sync.RWMutex
	bots map[string]*bot

	reports *critic.ReportStore
	journal *journal.Journal
	secret  string
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures an Applier.
type Option func(*Applier)

// WithPasscodeSecret requires operator requests to carry a TOTP code for secret.
func WithPasscodeSecret(secret string) Option { return func(a *Applier) { a.secret = secret } }

func WithLogger(l *zap.Logger) Option { return func(a *Applier) { a.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(a *Applier) { a.metrics = m } }

func WithClock(now func() time.Time) Option { return func(a *Applier) { a.now = now } }

// New creates an Applier.
func New(reports *critic.ReportStore, j *journal.Journal, opts ...Option) *Applier {
	a := &Applier{
		bots:    make(map[string]*bot),
		reports: reports,
		journal: j,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = metrics.Discard()
	}
	return a
}

// Register makes a bot eligible for tuning.
func (a *Applier) Register(botID string, t Target) {
	a.mu.Lock()
	a.bots[botID] = &bot{target: t}
	a.mu.Unlock()
}

// Apply applies one recommendation. The configuration swap takes effect on the
// bot's next evaluation.
func (a *Applier) Apply(ctx context.Context, req Request) (critic.ParameterChange, error) {
	a.mu.RLock()
	b, ok := a.bots[req.BotID]
	a.mu.RUnlock()
	if !ok {
		return critic.ParameterChange{}, errors.Wrap(ErrUnknownBot, req.BotID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	cfg := b.target.Config()
	if req.Auto {
		if !cfg.Tuning.AutoApply {
			return critic.ParameterChange{}, errors.Errorf("tuning: auto_apply is disabled for %s", req.BotID)
		}
	} else if err := a.checkPasscode(req.Passcode); err != nil {
		return critic.ParameterChange{}, err
	}

	report, err := a.reports.Get(req.BotID, req.ReportID)
	if err != nil {
		return critic.ParameterChange{}, err
	}
	rec, ok := report.Recommendation(req.Param)
	if !ok {
		return critic.ParameterChange{}, errors.Wrapf(ErrNotPending, "report %s has no recommendation for %s", req.ReportID, req.Param)
	}
	if rec.Applied {
		return critic.ParameterChange{}, errors.Wrapf(ErrNotPending, "%s already applied from report %s", req.Param, req.ReportID)
	}

	current := cfg.Value(req.Param)
	if math.Abs(current-rec.PreviousValue) > 1e-9 {
		return critic.ParameterChange{}, errors.Wrapf(ErrStale, "%s is %g, recommendation was made at %g",
			req.Param, current, rec.PreviousValue)
	}
	if err := cfg.Tuning.Whitelist.Validate(req.Param, rec.PreviousValue, rec.NewValue); err != nil {
		return critic.ParameterChange{}, err
	}
	if err := cfg.Set(req.Param, rec.NewValue); err != nil {
		return critic.ParameterChange{}, err
	}
	applied := cfg.Value(req.Param)

	b.target.UpdateConfig(cfg)
	if err := a.reports.MarkApplied(req.BotID, req.ReportID, req.Param, applied); err != nil {
		return critic.ParameterChange{}, err
	}

	rec.NewValue = applied
	rec.Applied = true
	a.metrics.ParamChanges.WithLabelValues(req.BotID, req.Param.String()).Inc()
	a.log.Info("parameter changed",
		zap.String("bot", req.BotID),
		zap.String("report", req.ReportID),
		zap.Stringer("param", req.Param),
		zap.Float64("from", rec.PreviousValue),
		zap.Float64("to", applied),
		zap.Bool("auto", req.Auto))

	if _, err := a.journal.RecordEvent(ctx, req.BotID, model.Event{
		ID:      req.ReportID + ":" + req.Param.String(),
		Kind:    EventParameterChange,
		Message: rec.Reason,
		Fields: map[string]any{
			"report_id":      req.ReportID,
			"parameter":      req.Param.String(),
			"previous_value": rec.PreviousValue,
			"new_value":      applied,
			"auto":           req.Auto,
		},
	}); err != nil {
		// the change is live; only the audit record is missing
		a.log.Error("journal parameter change", zap.String("bot", req.BotID), zap.Error(err))
	}
	return rec, nil
}

// ApplyReport auto-applies every pending recommendation of a report in
// order. It stops at the first error.
func (a *Applier) ApplyReport(ctx context.Context, r *critic.Report) ([]critic.ParameterChange, error) {
	var out []critic.ParameterChange
	for _, rec := range r.Recommendations {
		if rec.Applied {
			continue
		}
		ch, err := a.Apply(ctx, Request{BotID: r.BotID, ReportID: r.ID, Param: rec.Parameter, Auto: true})
		if err != nil {
			return out, err
		}
		out = append(out, ch)
	}
	return out, nil
}

func (a *Applier) checkPasscode(code string) error {
	if a.secret == "" {
		return nil
	}
	if code == "" {
		return ErrPasscode
	}
	ok, err := totp.ValidateCustom(code, a.secret, a.now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !ok {
		return ErrPasscode
	}
	return nil
}
