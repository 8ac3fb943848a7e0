package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// ClaimSet is what the candidate asserts; the analyzer checks the
// transcript against it.
type ClaimSet struct {
	CandidateName string   `json:"candidate_name"`
	Company       string   `json:"company"`
	Title         string   `json:"title,omitempty"`
	Dates         string   `json:"dates,omitempty"`
	Achievements  []string `json:"achievements,omitempty"`
}

// BuildClaimSet assembles the claims for a reference's job from the
// candidate and resume data.
func BuildClaimSet(candidate *models.Candidate, job *models.Job) ClaimSet {
	cs := ClaimSet{CandidateName: candidate.Name}
	if job != nil {
		cs.Company = job.Company
		cs.Title = job.Title
		cs.Dates = job.Dates
		cs.Achievements = job.Achievements
	}
	return cs
}

// AnalysisResult mirrors the structured JSON the model is forced to
// return. Tri-state booleans: nil means the transcript never touched
// the claim.
type AnalysisResult struct {
	EmploymentConfirmed *bool `json:"employment_confirmed"`
	DatesAccurate       *bool `json:"dates_accurate"`
	TitleConfirmed      *bool `json:"title_confirmed"`
	WouldRehire         *bool `json:"would_rehire"`

	AchievementsVerified    []string `json:"achievements_verified"`
	AchievementsNotVerified []string `json:"achievements_not_verified"`
	Discrepancies           []string `json:"discrepancies"`
	RedFlags                []string `json:"red_flags"`
	PositiveSignals         []string `json:"positive_signals"`

	OverallSentiment string `json:"overall_sentiment"`
	ConfidenceLevel  string `json:"confidence_level"`
	Summary          string `json:"summary"`
}

// TranscriptAnalyzer turns a raw call transcript into a structured
// verification result.
type TranscriptAnalyzer interface {
	Analyze(ctx context.Context, transcript string, claims ClaimSet) (*AnalysisResult, error)
}

// minUsableTranscriptLen mirrors the call-side usability cutoff.
const minUsableTranscriptLen = 100

// OpenAIAnalysisService implements TranscriptAnalyzer on GPT-4o with a
// forced strict function call.
type OpenAIAnalysisService struct {
	client *openai.Client
}

func NewOpenAIAnalysisService(apiKey string) *OpenAIAnalysisService {
	if apiKey == "" {
		return &OpenAIAnalysisService{client: nil}
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIAnalysisService{client: &c}
}

func boolOrNullSchema() map[string]any {
	return map[string]any{"type": []string{"boolean", "null"}}
}

func stringArraySchema() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]string{"type": "string"},
	}
}

func analysisSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"employment_confirmed":      boolOrNullSchema(),
			"dates_accurate":            boolOrNullSchema(),
			"title_confirmed":           boolOrNullSchema(),
			"would_rehire":              boolOrNullSchema(),
			"achievements_verified":     stringArraySchema(),
			"achievements_not_verified": stringArraySchema(),
			"discrepancies":             stringArraySchema(),
			"red_flags":                 stringArraySchema(),
			"positive_signals":          stringArraySchema(),
			"overall_sentiment": map[string]any{
				"type": "string",
				"enum": []string{"very_positive", "positive", "neutral", "negative", "very_negative"},
			},
			"confidence_level": map[string]any{
				"type": "string",
				"enum": []string{"high", "medium", "low"},
			},
			"summary": map[string]string{"type": "string"},
		},
		"required": []string{
			"employment_confirmed",
			"dates_accurate",
			"title_confirmed",
			"would_rehire",
			"achievements_verified",
			"achievements_not_verified",
			"discrepancies",
			"red_flags",
			"positive_signals",
			"overall_sentiment",
			"confidence_level",
			"summary",
		},
		"additionalProperties": false,
	}
}

func (s *OpenAIAnalysisService) Analyze(ctx context.Context, transcript string, claims ClaimSet) (*AnalysisResult, error) {
	if len(strings.TrimSpace(transcript)) < minUsableTranscriptLen {
		return nil, fmt.Errorf("%w: transcript too short for analysis", utils.ErrUnusableTranscript)
	}
	if s.client == nil {
		return nil, fmt.Errorf("%w: analysis disabled, no API key configured", utils.ErrExternalServiceFailure)
	}

	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}

	fn := shared.FunctionDefinitionParam{
		Name:        "record_reference_analysis",
		Description: openai.String("Record the structured outcome of analyzing a reference-check call transcript."),
		Strict:      openai.Bool(true),
		Parameters:  analysisSchema(),
	}

	prompt := fmt.Sprintf(`You are analyzing the transcript of a reference-check phone call.

The candidate made these claims:
%s

Transcript:
%s

Call record_reference_analysis with your findings. Rules:
1. employment_confirmed/dates_accurate/title_confirmed/would_rehire are null when the topic never came up, true when the reference confirmed it, false when the reference contradicted it.
2. achievements_verified and achievements_not_verified only contain achievements from the claims list.
3. discrepancies are concrete statements by the reference that conflict with a claim.
4. red_flags are concerning statements about the candidate (performance issues, integrity concerns, terminations).
5. positive_signals are unprompted praise or strong endorsements.
6. Keep summary to 2-3 sentences.`, string(claimsJSON), transcript)

	req := openai.ChatCompletionNewParams{
		Model:       shared.ChatModelGPT4o,
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Function: fn,
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: "record_reference_analysis",
				},
			},
		},
	}

	resp, err := s.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", utils.ErrExternalServiceFailure, err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("%w: openai returned no function call", utils.ErrExternalServiceFailure)
	}

	var out AnalysisResult
	if err := json.Unmarshal(
		[]byte(resp.Choices[0].Message.ToolCalls[0].Function.Arguments),
		&out,
	); err != nil {
		return nil, fmt.Errorf("unmarshal analysis result: %w", err)
	}
	return &out, nil
}

// ReplyParser extracts a requested callback time from a free-form SMS
// reply ("tomorrow at 2pm works"). A nil time with a nil error means the
// reply named no usable time.
type ReplyParser interface {
	ParseCallbackTime(ctx context.Context, body, timezone string, now time.Time) (*time.Time, error)
}

func callbackTimeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"datetime_iso": map[string]any{
				"type":        []string{"string", "null"},
				"description": "The requested callback time as RFC 3339 with offset, or null when the reply names no time.",
			},
		},
		"required":             []string{"datetime_iso"},
		"additionalProperties": false,
	}
}

func (s *OpenAIAnalysisService) ParseCallbackTime(ctx context.Context, body, timezone string, now time.Time) (*time.Time, error) {
	if s.client == nil {
		return nil, nil
	}
	if timezone == "" {
		timezone = "America/New_York"
	}

	fn := shared.FunctionDefinitionParam{
		Name:        "record_callback_time",
		Description: openai.String("Record the callback time requested in an SMS reply, or null if none."),
		Strict:      openai.Bool(true),
		Parameters:  callbackTimeSchema(),
	}

	prompt := fmt.Sprintf(`Someone we tried to call replied to a text asking when we should call back.

Current time: %s
Their timezone: %s
Their reply: %q

Call record_callback_time. Resolve relative phrases ("tomorrow afternoon", "after 5") against the current time in their timezone. If the reply declines or names no time, pass null.`,
		now.Format(time.RFC3339), timezone, body)

	req := openai.ChatCompletionNewParams{
		Model:       shared.ChatModelGPT4o,
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Tools: []openai.ChatCompletionToolParam{{
			Function: fn,
		}},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: "record_callback_time",
				},
			},
		},
	}

	resp, err := s.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: openai: %v", utils.ErrExternalServiceFailure, err)
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		return nil, fmt.Errorf("%w: openai returned no function call", utils.ErrExternalServiceFailure)
	}

	var out struct {
		DatetimeISO *string `json:"datetime_iso"`
	}
	if err := json.Unmarshal(
		[]byte(resp.Choices[0].Message.ToolCalls[0].Function.Arguments),
		&out,
	); err != nil {
		return nil, fmt.Errorf("unmarshal callback time: %w", err)
	}
	if out.DatetimeISO == nil || *out.DatetimeISO == "" {
		return nil, nil
	}
	when, err := time.Parse(time.RFC3339, *out.DatetimeISO)
	if err != nil {
		return nil, fmt.Errorf("parse callback time %q: %w", *out.DatetimeISO, err)
	}
	return &when, nil
}

// sentimentAdjustment maps the model's overall sentiment to a score delta.
var sentimentAdjustment = map[string]int{
	"very_positive": 10,
	"positive":      5,
	"neutral":       0,
	"negative":      -15,
	"very_negative": -25,
}

// CalculateVerificationScore reduces an analysis result to a 0-100
// score. Starts at 50; confirmed claims add, contradicted claims
// subtract more than they add, every reference with all core claims
// confirmed and nothing negative lands at 100.
func CalculateVerificationScore(r *AnalysisResult) int {
	score := 50

	if r.EmploymentConfirmed != nil {
		if *r.EmploymentConfirmed {
			score += 15
		} else {
			score -= 30
		}
	}
	if r.DatesAccurate != nil {
		if *r.DatesAccurate {
			score += 10
		} else {
			score -= 20
		}
	}
	if r.TitleConfirmed != nil {
		if *r.TitleConfirmed {
			score += 10
		} else {
			score -= 15
		}
	}
	if r.WouldRehire != nil {
		if *r.WouldRehire {
			score += 15
		} else {
			score -= 25
		}
	}

	score += min(len(r.AchievementsVerified)*5, 15)
	score -= len(r.AchievementsNotVerified) * 8
	score -= len(r.Discrepancies) * 10
	score -= len(r.RedFlags) * 7
	score += min(len(r.PositiveSignals)*3, 10)
	score += sentimentAdjustment[r.OverallSentiment]

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}
