package audit

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"admissions/internal/audit/device"
	"admissions/internal/audit/metrics"
	dErrors "admissions/pkg/domain-errors"
	"admissions/pkg/platform/privacy"
	"admissions/pkg/requestcontext"
)

const (
	defaultBufferSize = 1024
	DefaultQueryLimit = 100
	MaxQueryLimit     = 1000
)

type queued struct {
	ctx   context.Context
	entry Entry
}

// Logger records audit entries. Log never blocks on the store and never
// returns an error: failed writes are reported to the diagnostic logger only.
type Logger struct {
	store   Store
	alerts  AlertSink
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	async   bool
	entries chan queued
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// Option configures the Logger.
type Option func(*Logger)

// WithBuffer sets the async queue size. Zero makes Log persist inline.
func WithBuffer(size int) Option {
	return func(l *Logger) {
		if size <= 0 {
			l.async = false
			l.entries = nil
			return
		}
		l.async = true
		l.entries = make(chan queued, size)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Logger) {
		l.metrics = m
	}
}

// WithAlertSink replaces the default slog alert sink for critical entries.
func WithAlertSink(sink AlertSink) Option {
	return func(l *Logger) {
		l.alerts = sink
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(l *Logger) {
		l.tracer = t
	}
}

// New creates a Logger persisting to store. It is asynchronous by default;
// call Close to drain pending entries.
func New(store Store, opts ...Option) *Logger {
	l := &Logger{
		store:   store,
		async:   true,
		entries: make(chan queued, defaultBufferSize),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.alerts == nil {
		l.alerts = NewLogAlertSink(l.logger)
	}
	if l.tracer == nil {
		l.tracer = otel.Tracer("admissions/audit")
	}
	if l.async {
		l.wg.Add(1)
		go l.process()
	}
	return l
}

func (l *Logger) process() {
	defer l.wg.Done()
	for q := range l.entries {
		if l.metrics != nil {
			l.metrics.QueueDepth.Set(float64(len(l.entries)))
		}
		l.persist(q.ctx, q.entry)
	}
}

// Log records entry without waiting for persistence. Caller fields win over
// the defaults; empty actor and client fields are filled from ctx.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	e, ok := l.prepare(ctx, entry)
	if !ok {
		return
	}
	if !l.async {
		l.persist(ctx, e)
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.drop(e, "audit logger closed, entry dropped")
		return
	}
	select {
	case l.entries <- queued{ctx: context.WithoutCancel(ctx), entry: e}:
		if l.metrics != nil {
			l.metrics.QueueDepth.Set(float64(len(l.entries)))
		}
	default:
		l.drop(e, "audit buffer full, entry dropped")
	}
}

// LogSync records entry and waits for the write. Store errors are still
// swallowed.
func (l *Logger) LogSync(ctx context.Context, entry Entry) {
	e, ok := l.prepare(ctx, entry)
	if !ok {
		return
	}
	l.persist(ctx, e)
}

func (l *Logger) LogSuccess(ctx context.Context, action Action, userID string, details map[string]any) {
	l.Log(ctx, Entry{
		Action:  action,
		UserID:  userID,
		Details: details,
		Success: Bool(true),
	})
}

func (l *Logger) LogFailure(ctx context.Context, action Action, userID, errorMessage string, details map[string]any) {
	l.Log(ctx, Entry{
		Action:       action,
		Severity:     SeverityError,
		UserID:       userID,
		Details:      details,
		Success:      Bool(false),
		ErrorMessage: errorMessage,
	})
}

// LogSecurityEvent records a suspicious or rejected request from ipAddress.
// A device summary of the request's user agent is added to the details.
func (l *Logger) LogSecurityEvent(ctx context.Context, action Action, ipAddress string, details map[string]any) {
	merged := make(map[string]any, len(details)+1)
	maps.Copy(merged, details)
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		if _, set := merged["device"]; !set {
			merged["device"] = device.Describe(ua).Display
		}
	}
	l.Log(ctx, Entry{
		Action:    action,
		Severity:  SeverityWarning,
		IPAddress: ipAddress,
		Details:   merged,
		Success:   Bool(false),
	})
}

// Query returns entries matching filter, newest first. Limit defaults to
// DefaultQueryLimit and is capped at MaxQueryLimit.
func (l *Logger) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultQueryLimit
	}
	if filter.Limit > MaxQueryLimit {
		filter.Limit = MaxQueryLimit
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "from must not be after to")
	}
	entries, err := l.store.Query(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit logs")
	}
	return entries, nil
}

// AnonymizeUser replaces userID and its email on every stored entry.
func (l *Logger) AnonymizeUser(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	n, err := l.store.AnonymizeUser(ctx, userID, privacy.AnonymizeUserID(userID), privacy.AnonymizedEmail)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to anonymize audit logs")
	}
	return n, nil
}

// Close stops accepting entries and waits for queued ones to be persisted,
// or for ctx to end.
func (l *Logger) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	if l.async {
		close(l.entries)
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Logger) prepare(ctx context.Context, e Entry) (Entry, bool) {
	if !e.Action.IsValid() {
		l.logger.WarnContext(ctx, "audit entry with unknown action dropped", "action", e.Action)
		if l.metrics != nil {
			l.metrics.EntriesDropped.Inc()
		}
		return Entry{}, false
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if !e.Severity.IsValid() {
		e.Severity = SeverityInfo
	}
	// Call time, not the pinned request time.
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Success == nil {
		e.Success = Bool(true)
	}
	if *e.Success {
		e.ErrorMessage = ""
	}
	if e.Details != nil {
		e.Details = maps.Clone(e.Details)
	}

	actor := requestcontext.GetActor(ctx)
	if e.UserID == "" {
		e.UserID = actor.UserID
	}
	if e.UserEmail == "" {
		e.UserEmail = actor.Email
	}
	if e.UserRole == "" {
		e.UserRole = actor.Role
	}
	if e.IPAddress == "" {
		e.IPAddress = requestcontext.ClientIP(ctx)
	}
	if e.UserAgent == "" {
		e.UserAgent = requestcontext.UserAgent(ctx)
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	return e, true
}

func (l *Logger) persist(ctx context.Context, e Entry) {
	ctx, span := l.tracer.Start(ctx, "audit.persist", trace.WithAttributes(
		attribute.String("audit.action", e.Action.String()),
		attribute.String("audit.severity", string(e.Severity)),
	))
	defer span.End()

	start := time.Now()
	err := l.store.Add(ctx, e)
	if l.metrics != nil {
		l.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.ErrorContext(ctx, "failed to persist audit entry",
			"error", err,
			"action", e.Action,
			"user_id", e.UserID,
		)
		if l.metrics != nil {
			l.metrics.PersistFailures.Inc()
		}
	} else if l.metrics != nil {
		l.metrics.EntriesWritten.WithLabelValues(string(e.Severity)).Inc()
	}

	if e.Severity == SeverityCritical {
		l.alert(ctx, e)
	}
}

func (l *Logger) alert(ctx context.Context, e Entry) {
	if err := l.alerts.Alert(ctx, e); err != nil {
		l.logger.ErrorContext(ctx, "failed to send audit alert",
			"error", err,
			"action", e.Action,
			"entry_id", e.ID,
		)
		if l.metrics != nil {
			l.metrics.AlertFailures.Inc()
		}
		return
	}
	if l.metrics != nil {
		l.metrics.AlertsSent.Inc()
	}
}

func (l *Logger) drop(e Entry, msg string) {
	l.logger.Warn(msg,
		"action", e.Action,
		"user_id", e.UserID,
	)
	if l.metrics != nil {
		l.metrics.EntriesDropped.Inc()
	}
}
