package parseuserintent

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "hr-assistant/internal/common/errors"
	commonhttp "hr-assistant/internal/common/http"
	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/common/metrics"
	"hr-assistant/internal/models"
	parsefallback "hr-assistant/internal/pipeline/parse-fallback"
)

const (
	TaskType = "parse-user-intent"

	testPrompt = "Тестовый запрос"
)

var (
	ErrCompletionTimeout = errors.New("COMPLETION_TIMEOUT")
	ErrUpstream          = errors.New("COMPLETION_UPSTREAM_FAILED")
)

//go:embed system_prompt.txt
var systemPrompt string

// SystemPrompt returns the instruction document sent with every question.
func SystemPrompt() string {
	return systemPrompt
}

// Handler turns a question into a Command with the completion service and
// falls back to the keyword cascade whenever the service cannot help.
type Handler struct {
	config  *Config
	client  *commonhttp.Client
	limiter *rate.Limiter
	cascade *parsefallback.Cascade
	logger  logger.Logger
}

func NewHandler(config *Config, cascade *parsefallback.Cascade, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cascade == nil {
		cascade = parsefallback.NewCascade(log)
	}

	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}

	return &Handler{
		config:  config,
		client:  commonhttp.NewClient(config.Timeout),
		limiter: rate.NewLimiter(limit, burst),
		cascade: cascade,
		logger: log.With(map[string]interface{}{
			"stage": TaskType,
		}),
	}
}

// Enabled reports whether questions are sent to the completion service at all.
func (h *Handler) Enabled() bool {
	return h.config.Enabled()
}

// Parse never fails: transport and shape errors end in the cascade.
func (h *Handler) Parse(ctx context.Context, text string) (models.Command, Source) {
	if !h.config.Enabled() {
		return h.fallback(text, "disabled"), SourceCascade
	}
	if !h.limiter.Allow() {
		h.logger.Warn("completion rate exceeded, using keyword parser", nil)
		return h.fallback(text, "rate_limited"), SourceCascade
	}

	reply, err := h.complete(ctx, text)
	if err != nil {
		reason := "upstream"
		if errors.Is(err, ErrCompletionTimeout) {
			reason = "timeout"
		}
		h.logger.Warn("completion failed, using keyword parser", map[string]interface{}{
			"error": err.Error(),
			"code":  string(apperrors.CodeOf(err)),
		})
		return h.fallback(text, reason), SourceCascade
	}

	cmd, rung, ok := extract(reply)
	if !ok {
		parseErr := apperrors.NewIntentParsingFailedError(truncate(reply, 200))
		h.logger.Warn("model reply is not a command", map[string]interface{}{
			"code":  string(parseErr.Code),
			"reply": parseErr.Details,
		})
		return h.fallback(text, "unparseable"), SourceCascade
	}

	// The cascade sometimes recognizes phrasing the model gave up on.
	if cmd.Action == models.ActionUnknown {
		if alt := h.cascade.Parse(text); alt.Action != models.ActionUnknown {
			metrics.ParseFallbacks.WithLabelValues("model_unknown").Inc()
			return alt, SourceCascade
		}
	}

	h.logger.Info("question parsed by model", map[string]interface{}{
		"action": string(cmd.Action),
		"rung":   string(rung),
	})
	return cmd, SourceModel
}

// TestConnection sends a probe question and reports whether a non-empty
// reply came back.
func (h *Handler) TestConnection(ctx context.Context) bool {
	if !h.config.Enabled() {
		return false
	}
	reply, err := h.complete(ctx, testPrompt)
	if err != nil {
		h.logger.Warn("completion probe failed", map[string]interface{}{"error": err.Error()})
		return false
	}
	return strings.TrimSpace(reply) != ""
}

func (h *Handler) fallback(text, reason string) models.Command {
	metrics.ParseFallbacks.WithLabelValues(reason).Inc()
	return h.cascade.Parse(text)
}

func (h *Handler) complete(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.CompletionDuration.Observe(time.Since(start).Seconds())
	}()

	url := strings.TrimRight(h.config.BaseURL, "/") + completionPath
	headers := map[string]string{
		"Authorization": "Api-Key " + h.config.APIKey,
		"x-folder-id":   h.config.FolderID,
	}
	body := completionRequest{
		ModelURI: h.config.modelURI(),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: h.config.Temperature,
			MaxTokens:   h.config.MaxTokens,
		},
		Messages: []message{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: text},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-ctx.Done():
				return "", h.timeoutError()
			case <-time.After(backoff):
			}
		}

		status, raw, err := h.client.PostJSON(ctx, url, headers, body)
		if err != nil {
			if isTimeout(ctx, err) {
				return "", h.timeoutError()
			}
			return "", upstreamError(err)
		}
		if status >= 500 {
			lastErr = fmt.Errorf("status %d", status)
			h.logger.Debug("completion attempt failed", map[string]interface{}{
				"attempt": attempt + 1,
				"status":  status,
			})
			continue
		}
		if status < 200 || status >= 300 {
			return "", upstreamError(fmt.Errorf("status %d: %s", status, truncate(string(raw), 200)))
		}

		reply, err := decodeReply(raw)
		if err != nil {
			return "", upstreamError(err)
		}
		h.logger.Debug("completion received", map[string]interface{}{
			"duration": time.Since(start).Milliseconds(),
			"attempts": attempt + 1,
		})
		return reply, nil
	}
	return "", upstreamError(lastErr)
}

func decodeReply(raw []byte) (string, error) {
	var resp completionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("malformed envelope: %w", err)
	}
	if len(resp.Result.Alternatives) == 0 {
		return "", errors.New("malformed envelope: no alternatives")
	}
	return resp.Result.Alternatives[0].Message.Text, nil
}

func (h *Handler) timeoutError() error {
	return fmt.Errorf("%w: %w", ErrCompletionTimeout, apperrors.NewCompletionTimeoutError(h.config.Timeout))
}

func upstreamError(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstream, apperrors.NewCompletionUpstreamError(err))
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}
