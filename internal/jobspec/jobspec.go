// Package jobspec holds the per-job-type prompts, sampling temperatures and
// required output keys shared by every remote generator.
package jobspec

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/limbopet/brain/internal/model"
)

//go:embed prompts/*.md
var promptFS embed.FS

// ErrUnsupportedJobType is returned for a job type with no table entry.
var ErrUnsupportedJobType = errors.New("unsupported job type")

// Spec describes how a single job type is generated and validated.
type Spec struct {
	SystemPrompt string
	Temperature  float64
	RequiredKeys []string
}

type entry struct {
	jobType model.JobType
	spec    Spec
}

// table is ordered so Types() is stable.
var table = []entry{
	{model.JobDialogue, Spec{mustPrompt("dialogue"), 0.8, []string{"lines", "mood", "safe_level"}}},
	{model.JobDailySummary, Spec{mustPrompt("daily_summary"), 0.6, []string{"day", "summary", "facts"}}},
	{model.JobDiaryPost, Spec{mustPrompt("diary_post"), 0.7, []string{"title", "body", "safe_level"}}},
	{model.JobPlazaPost, Spec{mustPrompt("plaza_post"), 0.9, []string{"title", "body", "safe_level"}}},
	{model.JobCampaignSpeech, Spec{mustPrompt("campaign_speech"), 0.7, []string{"speech", "safe_level"}}},
	{model.JobVoteDecision, Spec{mustPrompt("vote_decision"), 0.5, []string{"candidate_id", "safe_level"}}},
	{model.JobPolicyDecision, Spec{mustPrompt("policy_decision"), 0.4, []string{"changes", "safe_level"}}},
}

func mustPrompt(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".md")
	if err != nil {
		panic(fmt.Sprintf("jobspec: missing prompt %s: %v", name, err))
	}
	return strings.TrimSpace(string(data))
}

// Lookup returns the spec for jobType. The returned RequiredKeys slice is a
// copy and may be modified by the caller.
func Lookup(jobType model.JobType) (Spec, error) {
	for _, e := range table {
		if e.jobType == jobType {
			s := e.spec
			s.RequiredKeys = append([]string(nil), e.spec.RequiredKeys...)
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("%w: %s", ErrUnsupportedJobType, jobType)
}

// Types lists every supported job type in table order.
func Types() []model.JobType {
	out := make([]model.JobType, len(table))
	for i, e := range table {
		out[i] = e.jobType
	}
	return out
}
