package sales

import (
	"errors"
)

// ErrProtocol matches every *ProtocolError via errors.Is.
var ErrProtocol = errors.New("sales agent protocol error")

// Protocol failure codes.
const (
	CodeUnreachable                = "sales_agent_unreachable"
	CodeLLMError                   = "sales_agent_llm_error"
	CodeNoCandidates               = "sales_agent_no_candidates"
	CodeInvalidJSON                = "sales_agent_invalid_json"
	CodeInvalidSummary             = "sales_agent_invalid_summary"
	CodeInvalidRecommendations     = "sales_agent_invalid_recommendations"
	CodeNoMatchWithRecommendations = "sales_agent_no_match_with_recommendations"
	CodeMissingRecommendations     = "sales_agent_missing_recommendations"
	CodeTooManyRecommendations     = "sales_agent_too_many_recommendations"
	CodeInvalidRecommendationEntry = "sales_agent_invalid_recommendation_entry"
	CodeInvalidAppID               = "sales_agent_invalid_app_id"
	CodeDuplicateAppID             = "sales_agent_duplicate_app_id"
	CodeInvalidRationale           = "sales_agent_invalid_rationale"
	CodeInvalidTradeoff            = "sales_agent_invalid_tradeoff"
	CodeInvalidNoMatchMessage      = "sales_agent_invalid_no_match_message"
)

// ProtocolError reports that the agent could not produce a valid, grounded
// answer. Callers must turn it into NO_MATCH rather than guess.
type ProtocolError struct {
	Code string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return "sales agent error"
	}
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *ProtocolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is(err, ErrProtocol) match any code.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func protocolErr(code string) *ProtocolError {
	return &ProtocolError{Code: code}
}
