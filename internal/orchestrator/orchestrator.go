package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/config"
	"github.com/dominicdesy/intelia-expert/internal/conversation"
	"github.com/dominicdesy/intelia-expert/internal/entities"
	"github.com/dominicdesy/intelia-expert/internal/extraction"
	"github.com/dominicdesy/intelia-expert/internal/llm"
	"github.com/dominicdesy/intelia-expert/internal/logging"
	"github.com/dominicdesy/intelia-expert/internal/sufficiency"
	"github.com/dominicdesy/intelia-expert/internal/vectorstore"
)

const (
	defaultRetrievalLimit = 5
	defaultAnswersWindow  = 3
	clarificationScore    = 0.3
	failureScore          = 0.1
	maxAnswerConfidence   = 0.95
)

// Classifier decides whether a question carries enough context.
type Classifier interface {
	Classify(ctx context.Context, question, language string, consolidated *entities.EntitySet) sufficiency.Result
}

// Deps are the collaborators of an Orchestrator. Only Manager is required;
// missing extraction and classification fall back to heuristics, a missing
// Responder to templates, and a nil Pipeline or Retriever disables that
// step.
type Deps struct {
	Manager    *conversation.Manager
	Pipeline   Pipeline
	Extractor  extraction.Extractor
	Classifier Classifier
	Retriever  vectorstore.Retriever
	Responder  Responder
	Logger     *logging.Logger
	Tracer     trace.Tracer
}

// Orchestrator processes farmer questions. It is safe for concurrent use.
type Orchestrator struct {
	cfg        config.OrchestratorConfig
	manager    *conversation.Manager
	pipeline   Pipeline
	extractor  extraction.Extractor
	classifier Classifier
	retriever  vectorstore.Retriever
	responder  Responder
	template   TemplateResponder
	logger     *logging.Logger
	tracer     trace.Tracer

	stats       Stats
	metrics     *Metrics
	convMetrics *conversation.Metrics
}

// New returns an Orchestrator.
func New(cfg config.OrchestratorConfig, deps Deps) (*Orchestrator, error) {
	if deps.Manager == nil {
		return nil, errors.New("orchestrator: conversation manager is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	logger := deps.Logger.Named("orchestrator")
	if deps.Extractor == nil {
		deps.Extractor = extraction.NewTiered(nil, 0, logger.Underlying())
	}
	if deps.Classifier == nil {
		deps.Classifier = sufficiency.NewClassifier(nil, 0, logger.Underlying())
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("expertd.orchestrator")
	}
	if cfg.RetrievalLimit <= 0 {
		cfg.RetrievalLimit = defaultRetrievalLimit
	}
	if cfg.PreviousAnswersWindow <= 0 {
		cfg.PreviousAnswersWindow = defaultAnswersWindow
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = sufficiency.LangFrench
	}

	return &Orchestrator{
		cfg:         cfg,
		manager:     deps.Manager,
		pipeline:    deps.Pipeline,
		extractor:   deps.Extractor,
		classifier:  deps.Classifier,
		retriever:   deps.Retriever,
		responder:   deps.Responder,
		logger:      logger,
		tracer:      deps.Tracer,
		metrics:     NewMetrics(),
		convMetrics: conversation.NewMetrics(),
	}, nil
}

// Stats returns the request counters.
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.Snapshot()
}

// Manager returns the conversation manager.
func (o *Orchestrator) Manager() *conversation.Manager {
	return o.manager
}

// Process answers req. It never fails: collaborator errors fall through to
// the next tier and, as a last resort, to a templated message in the
// request language.
func (o *Orchestrator) Process(ctx context.Context, req Request) *Response {
	start := time.Now()
	o.stats.requests.Add(1)

	language := sufficiency.NormalizeLanguage(req.Language, o.cfg.DefaultLanguage)
	id := strings.TrimSpace(req.ConversationID)
	if id == "" {
		id = uuid.NewString()
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Process")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", id),
		attribute.String("language", language),
		attribute.Bool("clarification_response", req.IsClarificationResponse),
	)
	ctx = logging.WithConversationID(ctx, id)
	if req.UserID != "" {
		ctx = logging.WithUserID(ctx, req.UserID)
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		a := &answer{tier: TierTemplate, text: emptyQuestionMessage(language), confidence: failureScore}
		o.record(ctx, span, a, start)
		return &Response{
			ConversationID: id,
			Response:       a.text,
			Confidence:     a.confidence,
			Diagnostics:    map[string]any{"tier": string(a.tier), "error": "empty question"},
		}
	}

	unlock := o.manager.Lock(id)
	defer unlock()
	conv := o.manager.Get(ctx, id, req.UserID, language)

	user := conversation.NewMessage(conversation.RoleUser, question)
	user.Language = language
	user.Entities = o.extract(ctx, question, language)
	user.IsClarificationResponse = req.IsClarificationResponse
	if req.IsClarificationResponse {
		user.OriginalQuestionID = conv.Clarification().LastOriginalQuestionID
	}

	var (
		a     *answer
		saved string
	)
	if req.IsClarificationResponse && conv.State() == conversation.StateCriticalActive {
		saved = conv.AddMessage(user).ID
		o.persist(ctx, conv, conversation.RoleUser)
		a = o.reprocess(ctx, conv)
	}
	if a == nil {
		a = o.answer(ctx, conv, question, language, user.Entities)
	}

	switch {
	case saved == "":
		user.IsOriginalQuestion = a.clarifies()
		conv.AddMessage(user)
		o.persist(ctx, conv, conversation.RoleUser)
	case a.clarifies():
		// The reply could not be reprocessed and needs clarification itself.
		conv.MarkOriginalQuestion(saved)
	}
	if a.clarifies() {
		o.park(ctx, conv, question, language)
	}
	if a.tier != TierTemplate {
		reply := conversation.NewMessage(conversation.RoleAssistant, a.text)
		reply.Language = language
		conv.AddMessage(reply)
		o.persist(ctx, conv, conversation.RoleAssistant)
	}

	o.record(ctx, span, a, start)

	return &Response{
		ConversationID:         conv.ID(),
		Response:               a.text,
		Confidence:             a.confidence,
		Entities:               conv.Consolidated(),
		ClarificationQuestions: a.clarification,
		RAGUsed:                a.ragUsed,
		Diagnostics:            o.diagnostics(conv, a, start),
	}
}

// answer runs the primary tier then the fallback tier. It returns a
// templated failure answer when both fail.
func (o *Orchestrator) answer(ctx context.Context, conv *conversation.Conversation, question, language string, extracted *entities.EntitySet) *answer {
	if o.pipeline != nil && o.cfg.EnablePrimary {
		a, err := o.primary(ctx, conv, question, language, extracted)
		if err == nil {
			return a
		}
		o.tierFailed(ctx, TierPrimary, err)
	}

	a, err := o.fallback(ctx, conv.Consolidated(), question, language, extracted, true)
	if err == nil {
		return a
	}
	o.tierFailed(ctx, TierFallback, err)

	return &answer{
		tier:       TierTemplate,
		text:       failureMessage(language),
		confidence: failureScore,
		entities:   extracted,
	}
}

func (o *Orchestrator) primary(ctx context.Context, conv *conversation.Conversation, question, language string, extracted *entities.EntitySet) (*answer, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.primary")
	defer span.End()

	merged := entities.Merge(conv.Consolidated(), extracted)
	pctx, cancel := withTimeout(ctx, o.cfg.PrimaryTimeout.Duration())
	defer cancel()

	res, err := o.pipeline.Run(pctx, PipelineRequest{
		Question:        question,
		ConversationID:  conv.ID(),
		Language:        language,
		PreviousAnswers: conv.PreviousAnswers(o.cfg.PreviousAnswersWindow),
		Entities:        merged,
	})
	if err == nil && strings.TrimSpace(res.Answer) == "" {
		err = ErrEmptyAnswer
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return &answer{
		tier:       TierPrimary,
		text:       res.Answer,
		confidence: res.Confidence,
		entities:   merged,
		query:      question,
		sources:    res.Sources,
		ragUsed:    len(res.Sources) > 0,
	}, nil
}

// fallback extracts, merges, classifies and then answers or asks for
// clarification. With allowClarify false the classifier is skipped and the
// question is always answered.
func (o *Orchestrator) fallback(ctx context.Context, consolidated *entities.EntitySet, question, language string, extracted *entities.EntitySet, allowClarify bool) (*answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, span := o.tracer.Start(ctx, "Orchestrator.fallback")
	defer span.End()

	merged := entities.Merge(consolidated, extracted)
	a := &answer{tier: TierFallback, entities: merged, query: question}

	if allowClarify {
		res := o.classifier.Classify(ctx, question, language, merged)
		a.method = string(res.Method)
		span.SetAttributes(attribute.String("sufficiency", string(res.Status)))
		if !res.Sufficient() {
			questions := res.ClarificationQuestions
			if len(questions) == 0 {
				questions = sufficiency.ClarificationQuestions([]entities.Field{entities.FieldBreed, entities.FieldAgeDays}, language)
			}
			a.clarification = questions
			a.missing = res.MissingContext
			a.text = clarificationText(language, questions)
			a.confidence = clarificationScore
			return a, nil
		}
		if res.EnrichedQuery != "" {
			a.query = res.EnrichedQuery
		}
	}

	docs := o.retrieve(ctx, a.query)
	a.ragUsed = len(docs) > 0
	a.sources = sources(docs)

	rr := ResponseRequest{
		Question:  question,
		Query:     a.query,
		Language:  language,
		Entities:  merged,
		Documents: docs,
	}
	text, generated := o.respond(ctx, rr)
	a.text = text
	a.confidence = answerConfidence(docs, merged, generated)
	return a, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, query string) []vectorstore.Document {
	if o.retriever == nil || !o.cfg.EnableRAG {
		return nil
	}
	rctx, cancel := withTimeout(ctx, o.cfg.RetrievalTimeout.Duration())
	defer cancel()

	docs, err := o.retriever.Search(rctx, query, o.cfg.RetrievalLimit)
	if err != nil {
		o.metrics.TierFailures.WithLabelValues(string(TierFallback), "retrieval").Inc()
		o.logger.Warn(ctx, "retrieval failed, answering without documents", zap.Error(err))
		return nil
	}
	return docs
}

// respond drafts the answer with the configured Responder, falling back to
// templates. generated reports whether the Responder's text was used.
func (o *Orchestrator) respond(ctx context.Context, req ResponseRequest) (text string, generated bool) {
	if o.responder != nil {
		gctx, cancel := withTimeout(ctx, o.cfg.GenerationTimeout.Duration())
		out, err := o.responder.Respond(gctx, req)
		cancel()
		if err == nil && strings.TrimSpace(out) != "" {
			return out, true
		}
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		o.metrics.TierFailures.WithLabelValues(string(TierFallback), "generation").Inc()
		o.logger.Info(ctx, "response generation failed, using template",
			zap.String("kind", string(llm.KindOf(err))),
			zap.Error(err),
		)
	}
	text, _ = o.template.Respond(ctx, req)
	return text, false
}

// reprocess fires the parked callback of conv when a clarification response
// has re-armed it. It returns nil when nothing was reprocessed.
func (o *Orchestrator) reprocess(ctx context.Context, conv *conversation.Conversation) *answer {
	if !conv.CheckAndTriggerReprocessing() {
		return nil
	}
	ctx, span := o.tracer.Start(ctx, "Orchestrator.reprocess")
	defer span.End()

	sink := &answerSink{}
	res := conv.ReprocessOriginalQuestion(withSink(ctx, sink), o.manager.Callbacks(), o.logger.Underlying())
	o.convMetrics.Reprocessings.WithLabelValues(string(res.Status)).Inc()
	span.SetAttributes(attribute.String("status", string(res.Status)))

	if res.Status != conversation.ReprocessOK {
		o.logger.Warn(ctx, "reprocessing original question failed, answering the reply",
			zap.String("status", string(res.Status)),
			zap.Error(res.Err),
		)
		return nil
	}

	a := sink.answer
	if a == nil {
		a = &answer{text: res.Answer, confidence: answerConfidence(nil, conv.Consolidated(), false)}
	}
	a.tier = TierReprocess
	a.query = res.Question
	o.logger.Info(ctx, "original question reprocessed", zap.String("question", res.Question))
	return a
}

// park stores question as the pending original question and registers the
// callback that answers it once the user has clarified. A previously parked
// callback is invalidated.
func (o *Orchestrator) park(ctx context.Context, conv *conversation.Conversation, question, language string) {
	id := conv.ID()
	sub := o.manager.Callbacks().Register(id, func(ctx context.Context, enriched string) (string, error) {
		c, err := o.manager.Lookup(ctx, id)
		if err != nil {
			return "", err
		}
		extracted := o.extract(ctx, enriched, language)
		a, err := o.fallback(ctx, c.Consolidated(), enriched, language, extracted, false)
		if err != nil {
			return "", err
		}
		if sink := sinkFrom(ctx); sink != nil {
			sink.answer = a
		}
		return a.text, nil
	})
	if previous := conv.MarkPendingClarification(question, sub); previous != "" {
		o.manager.Callbacks().Invalidate(previous)
	}
	o.logger.Debug(ctx, "original question parked", zap.String("callback_id", sub.ID()))
}

func (o *Orchestrator) extract(ctx context.Context, text, language string) *entities.EntitySet {
	e, err := o.extractor.Extract(ctx, text, language)
	if err != nil || e == nil {
		o.logger.Debug(ctx, "entity extraction failed", zap.Error(err))
		return entities.New(entities.MethodHeuristic)
	}
	return e
}

// persist saves conv after one message was added. Failures are logged and
// never undo the message.
func (o *Orchestrator) persist(ctx context.Context, conv *conversation.Conversation, role conversation.Role) {
	if err := o.manager.Save(ctx, conv); err != nil {
		o.logger.Error(ctx, "saving conversation failed",
			zap.String("role", string(role)),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) tierFailed(ctx context.Context, tier Tier, err error) {
	reason := string(llm.KindOf(err))
	switch {
	case errors.Is(err, ErrNeedsClarification):
		reason = "needs_clarification"
	case errors.Is(err, ErrEmptyAnswer):
		reason = "empty_answer"
	case errors.Is(err, context.Canceled):
		reason = "canceled"
	}
	o.metrics.TierFailures.WithLabelValues(string(tier), reason).Inc()
	o.logger.Info(ctx, "tier failed, falling through",
		zap.String("tier", string(tier)),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (o *Orchestrator) record(ctx context.Context, span trace.Span, a *answer, start time.Time) {
	o.stats.record(a)
	o.metrics.record(a)
	o.metrics.Duration.WithLabelValues(string(a.tier)).Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.String("tier", string(a.tier)),
		attribute.Bool("rag_used", a.ragUsed),
		attribute.Bool("clarification", a.clarifies()),
	)
	if a.tier == TierTemplate {
		span.SetStatus(codes.Error, "no tier answered")
	}
	o.logger.Debug(ctx, "request processed",
		zap.String("tier", string(a.tier)),
		zap.Bool("clarification", a.clarifies()),
		zap.Duration("duration", time.Since(start)),
	)
}

func (o *Orchestrator) diagnostics(conv *conversation.Conversation, a *answer, start time.Time) map[string]any {
	d := map[string]any{
		"tier":                string(a.tier),
		"reprocessed":         a.tier == TierReprocess,
		"clarification_state": string(conv.State()),
		"urgency":             string(conv.Urgency()),
		"processing_ms":       time.Since(start).Milliseconds(),
	}
	if a.method != "" {
		d["sufficiency_method"] = a.method
	}
	if a.query != "" {
		d["query"] = a.query
	}
	if len(a.missing) > 0 {
		missing := make([]string, len(a.missing))
		for i, f := range a.missing {
			missing[i] = string(f)
		}
		d["missing_context"] = missing
	}
	if len(a.sources) > 0 {
		d["sources"] = a.sources
	}
	return d
}

// answerConfidence scores an answer from retrieval quality and how much of
// the flock is known.
func answerConfidence(docs []vectorstore.Document, e *entities.EntitySet, generated bool) float64 {
	c := 0.4
	if generated {
		c = 0.55
	}
	if len(docs) > 0 {
		score := float64(docs[0].Score)
		if score > 1 {
			score = 1
		}
		if score > 0 {
			c += 0.3 * score
		}
	}
	if e != nil && e.Breed != nil && e.HasAge() {
		c += 0.1
	}
	if c > maxAnswerConfidence {
		c = maxAnswerConfidence
	}
	return c
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

type sinkKey struct{}

// answerSink carries the detailed fallback answer out of a reprocess
// callback, whose signature only returns text.
type answerSink struct {
	answer *answer
}

func withSink(ctx context.Context, s *answerSink) context.Context {
	return context.WithValue(ctx, sinkKey{}, s)
}

func sinkFrom(ctx context.Context) *answerSink {
	s, _ := ctx.Value(sinkKey{}).(*answerSink)
	return s
}
