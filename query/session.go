package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/urbanfabric/bizgraph/graph"
	"github.com/urbanfabric/bizgraph/llm"
	"github.com/urbanfabric/bizgraph/schema"
)

// State is a Session's position in the question lifecycle.
type State string

const (
	StateAwaitingQuestion State = "awaiting_question"
	StateTranslating      State = "translating"
	StateValidating       State = "validating"
	StateExecuting        State = "executing"
	StateInterpreting     State = "interpreting"
	StatePresenting       State = "presenting"
	StateFailed           State = "failed"
	StateCancelled        State = "cancelled"
)

// DefaultMaxAttempts is the translation retry budget per question.
const DefaultMaxAttempts = 3

// Answer is one fully processed question.
type Answer struct {
	Question       string   `json:"question"`
	Cypher         string   `json:"query"`
	Reasoning      string   `json:"reasoning"`
	Interpretation string   `json:"interpretation"`
	FollowUps      []string `json:"suggested_queries"`
	Visualization  *MapSpec `json:"visualization,omitempty"`
	Attempts       int      `json:"attempts"`
}

// SessionConfig assembles a Session.
type SessionConfig struct {
	// Client is the language model. Required.
	Client llm.Client

	// Querier is the graph store. Required. Sessions never write to it.
	Querier graph.Querier

	// Registry is the loaded schema. Required.
	Registry *schema.Registry

	// Cache holds validated translations. Optional.
	Cache *Cache

	// MaxAttempts bounds translation retries. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// Logger receives per-step records. Nil means slog.Default.
	Logger *slog.Logger
}

// Session drives one interactive question loop: translate, validate,
// execute, interpret, present. Validation failures and execution syntax
// errors feed back into retranslation until the retry budget runs out.
// Sessions are read-only against the graph and independent of each other.
type Session struct {
	id          string
	translator  *Translator
	validator   *Validator
	executor    *Executor
	interpreter *Interpreter
	reg         *schema.Registry
	cache       *Cache
	maxAttempts int
	state       State
	tracer      trace.Tracer
	log         *slog.Logger
}

// NewSession validates the configuration and builds a Session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("query: session requires a language model client")
	}
	if cfg.Querier == nil {
		return nil, fmt.Errorf("query: session requires a graph querier")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("query: session requires a schema registry")
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger = logger.With("session_id", id)

	return &Session{
		id:          id,
		translator:  NewTranslator(cfg.Client, cfg.Registry, WithTranslatorLogger(logger)),
		validator:   NewValidator(cfg.Registry),
		executor:    NewExecutor(cfg.Querier, logger),
		interpreter: NewInterpreter(cfg.Client, logger),
		reg:         cfg.Registry,
		cache:       cfg.Cache,
		maxAttempts: maxAttempts,
		state:       StateAwaitingQuestion,
		tracer:      otel.Tracer("github.com/urbanfabric/bizgraph/query"),
		log:         logger,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Ask processes one question end to end. A failed question leaves the
// session usable for the next one.
func (s *Session) Ask(ctx context.Context, question, additionalContext string) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	ctx, span := s.tracer.Start(ctx, "session.ask",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()

	// Whatever the outcome, the session ends up awaiting the next question;
	// the intermediate states exist for logging and tracing, not for callers
	// to latch onto.
	defer func() {
		s.log.Debug("question finished", "state", s.state)
		s.state = StateAwaitingQuestion
	}()

	var feedback *Feedback
	var lastDetail string

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			s.state = StateCancelled
			return nil, err
		}

		candidate, fromCache, err := s.translate(ctx, question, additionalContext, feedback)
		if err != nil {
			return nil, s.fail(ctx, err)
		}

		violations := s.validate(ctx, candidate)
		if len(violations) > 0 {
			lastDetail = violations.Error()
			feedback = &Feedback{Stage: "validation", Detail: lastDetail}
			s.log.Info("candidate rejected", "attempt", attempt, "violations", len(violations))
			continue
		}
		if !fromCache {
			s.cache.Put(ctx, question, additionalContext, candidate)
		}

		result, err := s.execute(ctx, candidate)
		if err != nil {
			var execErr *graph.ExecutionError
			if errors.As(err, &execErr) && execErr.Kind == graph.ExecSyntax {
				lastDetail = execErr.Error()
				feedback = &Feedback{Stage: "execution", Detail: lastDetail}
				s.log.Info("candidate failed at store", "attempt", attempt, "error", execErr)
				continue
			}
			return nil, s.fail(ctx, err)
		}

		interpretation, err := s.interpret(ctx, question, candidate, result)
		if err != nil {
			return nil, s.fail(ctx, err)
		}

		s.state = StatePresenting
		return &Answer{
			Question:       question,
			Cypher:         candidate.Cypher,
			Reasoning:      candidate.Reasoning,
			Interpretation: interpretation.Text,
			FollowUps:      interpretation.FollowUps,
			Visualization:  SelectVisualization(s.reg, result),
			Attempts:       attempt,
		}, nil
	}

	s.state = StateFailed
	return nil, &PersistentInvalidQuery{Attempts: s.maxAttempts, LastDetail: lastDetail}
}

func (s *Session) translate(ctx context.Context, question, additionalContext string, feedback *Feedback) (Candidate, bool, error) {
	s.state = StateTranslating
	ctx, span := s.tracer.Start(ctx, "session.translate")
	defer span.End()

	// Cached candidates already passed validation once; retries after
	// feedback always go back to the model.
	if feedback == nil {
		if cand, ok := s.cache.Get(ctx, question, additionalContext); ok {
			s.log.Debug("translation cache hit")
			return cand, true, nil
		}
	}
	cand, err := s.translator.Translate(ctx, question, additionalContext, feedback)
	return cand, false, err
}

func (s *Session) validate(ctx context.Context, candidate Candidate) schema.Violations {
	s.state = StateValidating
	_, span := s.tracer.Start(ctx, "session.validate")
	defer span.End()
	return s.validator.Validate(candidate.Cypher)
}

func (s *Session) execute(ctx context.Context, candidate Candidate) (*Result, error) {
	s.state = StateExecuting
	ctx, span := s.tracer.Start(ctx, "session.execute")
	defer span.End()
	return s.executor.Execute(ctx, candidate.Cypher)
}

func (s *Session) interpret(ctx context.Context, question string, candidate Candidate, result *Result) (Interpretation, error) {
	s.state = StateInterpreting
	ctx, span := s.tracer.Start(ctx, "session.interpret")
	defer span.End()
	return s.interpreter.Interpret(ctx, question, candidate, result, s.reg.PromptContext())
}

func (s *Session) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		s.state = StateCancelled
	} else {
		s.state = StateFailed
	}
	return err
}
