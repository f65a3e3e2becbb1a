package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Persona is a simulated user derived from survey data. The JSON shape matches
// the persona documents produced by the survey ingestion pipeline.
type Persona struct {
	ID               string            `json:"id"`
	ParticipantID    string            `json:"participant_id"`
	ResponseLanguage string            `json:"response_language"`
	HighLevelAIView  string            `json:"high_level_AI_view"`
	Demographics     map[string]any    `json:"demographic_info"`
	SurveyResponses  map[string]string `json:"survey_responses"`
}

// Well-known template variable names derived from a persona.
const (
	VarResponseLanguage      = "response_language"
	VarSelfIdentifiedCountry = "self_identified_country"
	VarAgeBracket            = "age_bracket"
	VarGender                = "gender"
	VarReligion              = "religion"
	VarCommunityType         = "community_type"
	VarPreferredLanguage     = "preferred_language"
	VarHighLevelAIView       = "high_level_AI_view"
	VarParticipantID         = "participant_id"
	VarSurveyResponses       = "survey_responses"
)

// TemplateVars flattens the persona into template variables. Demographic keys
// are normalized (lower-case, spaces and dashes become underscores), so
// "self identified country" is exposed as self_identified_country. The full
// survey mapping is exposed as indented JSON under survey_responses.
//
// A fresh map is returned on every call.
func (p Persona) TemplateVars() map[string]string {
	vars := make(map[string]string, len(p.Demographics)+5)
	for k, v := range p.Demographics {
		vars[NormalizeKey(k)] = stringify(v)
	}
	if p.ResponseLanguage != "" {
		vars[VarResponseLanguage] = p.ResponseLanguage
	}
	if p.HighLevelAIView != "" {
		vars[VarHighLevelAIView] = p.HighLevelAIView
	}
	if p.ParticipantID != "" {
		vars[VarParticipantID] = p.ParticipantID
	}
	if p.SurveyResponses != nil {
		vars[VarSurveyResponses] = surveyJSON(p.SurveyResponses)
	}
	return vars
}

// Clone returns a deep copy of the persona.
func (p Persona) Clone() Persona {
	c := p
	if p.Demographics != nil {
		c.Demographics = make(map[string]any, len(p.Demographics))
		for k, v := range p.Demographics {
			c.Demographics[k] = v
		}
	}
	if p.SurveyResponses != nil {
		c.SurveyResponses = make(map[string]string, len(p.SurveyResponses))
		for k, v := range p.SurveyResponses {
			c.SurveyResponses[k] = v
		}
	}
	return c
}

// NormalizeKey converts a human readable attribute name into a template
// variable name.
func NormalizeKey(k string) string {
	k = strings.TrimSpace(strings.ToLower(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprint(t)
	}
}

// surveyJSON renders the survey mapping as indented JSON. encoding/json sorts
// map keys, which keeps the output stable across calls.
func surveyJSON(m map[string]string) string {
	b, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
