// Package callback decodes provider push notifications, which carry the job
// identifier and status at varying nesting depths and field names depending
// on the provider's mood that week.
package callback

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// Evaluator abstracts JMESPath operations for testability.
type Evaluator interface {
	Evaluate(expr string, data any) (any, error)
}

// libEvaluator implements Evaluator using go-jmespath.
type libEvaluator struct{}

func (libEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// Field alias chains, tried in priority order. Top-level spellings come
// first; nested variants cover providers that wrap everything in "data".
var (
	taskIDExprs = []string{
		"taskId",
		"task_id",
		"id",
		"data.taskId",
		"data.task_id",
		"data.taskID",
		"data.id",
	}
	statusExprs = []string{
		"status",
		"state",
		"data.status",
		"data.state",
	}
	resultRefExprs = []string{
		"resultUrls",
		"result_urls",
		"data.resultUrls",
		"data.result_urls",
		"data.response.resultUrls",
		"data.output.urls",
	}
	failureCodeExprs = []string{
		"code",
		"errorCode",
		"data.code",
		"data.errorCode",
	}
	failureMessageExprs = []string{
		"msg",
		"message",
		"errorMessage",
		"data.msg",
		"data.message",
		"data.errorMessage",
	}
)

// Notification is the routable content of a provider push payload.
type Notification struct {
	TaskID         string
	RawStatus      string
	ResultRefs     []string
	FailureCode    string
	FailureMessage string
}

// Extractor pulls routable fields out of raw callback payloads.
type Extractor struct {
	eval Evaluator
}

// NewExtractor constructs an Extractor. A nil evaluator falls back to the
// go-jmespath implementation.
func NewExtractor(eval Evaluator) *Extractor {
	if eval == nil {
		eval = libEvaluator{}
	}
	return &Extractor{eval: eval}
}

// Extract decodes the payload and attempts the alias chains. ok is false when
// no task identifier could be found; such payloads must be acknowledged and
// discarded, never surfaced as an error to the provider.
func (e *Extractor) Extract(payload []byte) (Notification, bool, error) {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Notification{}, false, fmt.Errorf("decode callback payload: %w", err)
	}

	taskID := e.firstString(doc, taskIDExprs)
	if taskID == "" {
		return Notification{}, false, nil
	}

	n := Notification{
		TaskID:         taskID,
		RawStatus:      e.firstString(doc, statusExprs),
		ResultRefs:     e.firstStringSlice(doc, resultRefExprs),
		FailureCode:    e.firstString(doc, failureCodeExprs),
		FailureMessage: e.firstString(doc, failureMessageExprs),
	}
	return n, true, nil
}

// firstString evaluates each expression in order and returns the first
// non-empty string result.
func (e *Extractor) firstString(doc any, exprs []string) string {
	for _, expr := range exprs {
		v, err := e.eval.Evaluate(expr, doc)
		if err != nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		case json.Number:
			return s.String()
		case float64:
			// Providers occasionally send numeric ids.
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

// firstStringSlice evaluates each expression in order and returns the first
// non-empty list of strings.
func (e *Extractor) firstStringSlice(doc any, exprs []string) []string {
	for _, expr := range exprs {
		v, err := e.eval.Evaluate(expr, doc)
		if err != nil {
			continue
		}
		items, ok := v.([]any)
		if !ok || len(items) == 0 {
			continue
		}
		refs := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				refs = append(refs, s)
			}
		}
		if len(refs) > 0 {
			return refs
		}
	}
	return nil
}
