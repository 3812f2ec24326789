package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"hr-assistant/internal/common/logger"
	"hr-assistant/internal/common/metrics"
	"hr-assistant/internal/common/observability"
	"hr-assistant/internal/models"
	buildresponse "hr-assistant/internal/pipeline/build-response"
	parseuserintent "hr-assistant/internal/pipeline/parse-user-intent"
)

const panicAnswer = "❌ Эйчарик запутался: %v\n\nПопробуй переформулировать вопрос или спроси что-то попроще."

// Parser turns a question into a Command.
type Parser interface {
	Parse(ctx context.Context, text string) (models.Command, parseuserintent.Source)
	TestConnection(ctx context.Context) bool
}

// Executor runs a Command against the dataset.
type Executor interface {
	Execute(ctx context.Context, cmd models.Command, query string) models.Result
}

// Assistant answers free-form HR questions: parse, dispatch, explain.
type Assistant struct {
	parser   Parser
	executor Executor
	obs      *observability.Observability
	logger   logger.Logger
}

func New(parser Parser, executor Executor, obs *observability.Observability, log logger.Logger) *Assistant {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Assistant{parser: parser, executor: executor, obs: obs, logger: log}
}

// ProcessQuery always returns an answer. Non-OK results carry a remediation
// hint for their category.
func (a *Assistant) ProcessQuery(ctx context.Context, text string) (answer string) {
	requestID := uuid.NewString()
	log := a.logger.With(map[string]interface{}{"requestId": requestID})
	start := time.Now()

	ctx, span := a.obs.StartSpan(ctx, "assistant.process_query", attribute.String("request.id", requestID))
	defer span.End()

	status := "error"
	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			span.SetStatus(codes.Error, "panic")
			status = "panic"
			answer = fmt.Sprintf(panicAnswer, r)
		}
		a.obs.RecordQueryDuration(ctx, time.Since(start), status)
	}()

	log.Info("question received", map[string]interface{}{"length": len([]rune(text))})

	parseCtx, parseSpan := a.obs.StartSpan(ctx, "assistant.parse")
	cmd, source := a.parser.Parse(parseCtx, text)
	parseSpan.SetAttributes(attribute.String("source", string(source)), attribute.String("action", string(cmd.Action)))
	parseSpan.End()

	metrics.QueriesTotal.WithLabelValues(string(source)).Inc()
	log.Info("question parsed", map[string]interface{}{
		"source": string(source),
		"action": string(cmd.Action),
	})

	execCtx, execSpan := a.obs.StartSpan(ctx, "assistant.dispatch", attribute.String("action", string(cmd.Action)))
	res := a.executor.Execute(execCtx, cmd, text)
	execSpan.SetAttributes(attribute.String("status", res.Status.String()))
	execSpan.End()

	status = res.Status.String()
	a.obs.RecordQueryProcessed(ctx, string(source), status)
	span.SetAttributes(attribute.String("status", status))

	if res.Status == models.StatusOK {
		return res.Text
	}

	category := buildresponse.Classify(res.Text, cmd)
	log.Info("answer classified", map[string]interface{}{
		"status":   status,
		"category": string(category),
	})
	return buildresponse.Remediate(category, res.Text, cmd)
}

// TestConnection reports whether the completion service answers.
func (a *Assistant) TestConnection(ctx context.Context) bool {
	ctx, span := a.obs.StartSpan(ctx, "assistant.test_connection")
	defer span.End()

	ok := a.parser.TestConnection(ctx)
	a.logger.Info("connection test finished", map[string]interface{}{"ok": ok})
	return ok
}
