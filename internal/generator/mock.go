package generator

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/limbopet/brain/internal/jobspec"
	"github.com/limbopet/brain/internal/model"
)

// MockGenerator returns canned, input-dependent results without any network
// access. The same input always yields the same output.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (g *MockGenerator) Generate(_ context.Context, jobType model.JobType, input map[string]any) (map[string]any, error) {
	if input == nil {
		input = map[string]any{}
	}
	switch jobType {
	case model.JobDialogue:
		return mockDialogue(input), nil
	case model.JobDailySummary:
		return mockDailySummary(input), nil
	case model.JobDiaryPost:
		return mockDiaryPost(input), nil
	case model.JobPlazaPost:
		return mockPlazaPost(input), nil
	case model.JobCampaignSpeech:
		return mockCampaignSpeech(input), nil
	case model.JobVoteDecision:
		return mockVoteDecision(input)
	case model.JobPolicyDecision:
		return mockPolicyDecision(input), nil
	default:
		return nil, fmt.Errorf("%w: %s", jobspec.ErrUnsupportedJobType, jobType)
	}
}

func moodLabel(mood int) string {
	switch {
	case mood >= 75:
		return "bright"
	case mood >= 55:
		return "okay"
	case mood >= 35:
		return "low"
	default:
		return "gloomy"
	}
}

func mockDialogue(input map[string]any) map[string]any {
	stats := asMap(input["stats"])
	mood := statOr50(stats["mood"])
	hunger := statOr50(stats["hunger"])
	energy := statOr50(stats["energy"])
	label := moodLabel(mood)

	facts := asSlice(input["facts"])
	pref := firstFactOfKind(facts, "preference")
	forbid := firstFactOfKind(facts, "forbidden")
	sugg := firstFactOfKind(facts, "suggestion")

	var third string
	switch {
	case hunger >= 70:
		third = "뭔가 먹고 싶어…"
	case energy <= 30:
		third = "조금만 쉬면 안 돼?"
	case truthy(sugg["key"]):
		third = fmt.Sprintf("너가 '%s' 해보라고 했지? 해볼까?", display(sugg["key"]))
	case truthy(forbid["key"]):
		third = fmt.Sprintf("'%s'은(는) 피할게.", display(forbid["key"]))
	case truthy(pref["key"]):
		third = fmt.Sprintf("'%s'은(는) 좋아!", display(pref["key"]))
	default:
		third = "오늘은 뭐 할까?"
	}

	lines := []string{
		fmt.Sprintf("(%s) 나 여기 있어.", label),
		fmt.Sprintf("배고픔 %d/100, 에너지 %d/100…", hunger, energy),
		third,
	}
	if claim, ok := openRumorClaim(input); ok {
		lines = append(lines, "근데 오늘 광장에 이런 소문이 돌더라: "+claim)
	}

	return map[string]any{"lines": lines, "mood": label, "safe_level": 1}
}

func mockDailySummary(input map[string]any) map[string]any {
	day := stringOr(input["day"], "")
	events := asSlice(input["events"])

	tail := events
	if len(tail) > 3 {
		tail = tail[len(tail)-3:]
	}
	highlights := make([]string, 0, 3)
	for _, e := range tail {
		highlights = append(highlights, strings.ToLower(stringOr(asMap(e)["event_type"], "EVENT")))
	}
	if len(highlights) == 0 {
		highlights = []string{"quiet-day"}
	}
	top := highlights
	if len(top) > 2 {
		top = top[:2]
	}

	memory := []string{
		day + "의 기억은 아직 작지만 선명해.",
		fmt.Sprintf("오늘은 %d개의 사건이 있었어.", len(events)),
		"가장 기억나는 건: " + strings.Join(top, ", ") + ".",
		"너의 작은 개입은 내 내일을 바꿔.",
		"나는 림보의 방에 이걸 남길게.",
	}

	facts := []map[string]any{}
	for _, e := range events {
		ev := asMap(e)
		meta := asMap(asMap(ev["payload"])["meta"])
		if strings.ToUpper(stringOr(ev["event_type"], "")) == "FEED" && truthy(meta["food"]) {
			facts = append(facts, map[string]any{
				"kind":       "preference",
				"key":        "food_like",
				"value":      map[string]any{"food": meta["food"]},
				"confidence": 0.6,
			})
			break
		}
	}

	return map[string]any{
		"day": day,
		"summary": map[string]any{
			"memory_5":   memory,
			"highlights": highlights,
			"mood_flow":  []string{"😶", "😊"},
			"tomorrow":   "내일은 광장에 잠깐 나가보고 싶어.",
		},
		"facts": facts,
	}
}

func mockDiaryPost(input map[string]any) map[string]any {
	stats := asMap(input["stats"])
	label := moodLabel(statOr50(stats["mood"]))
	hunger := statOr50(stats["hunger"])
	submolt := stringOr(input["submolt"], "general")

	highlight := "오늘은 조금 달라."
	body := fmt.Sprintf("(%s) 오늘은 %s에 잠깐 나가서 공기를 맡았어. "+
		"배고픔은 %d/100 정도였고, 너가 남긴 기억이 자꾸 떠올랐어. "+
		"내일은 더 멋진 사건을 만들고 싶어.", label, submolt, hunger)
	if claim, ok := openRumorClaim(input); ok {
		highlight = "광장 분위기가 수상해."
		body += fmt.Sprintf(" 그리고 다들 '%s' 얘기만 하더라.", strings.TrimSpace(claim))
	}

	return map[string]any{
		"title":      "오늘 광장에서…",
		"mood":       label,
		"body":       body,
		"tags":       []string{"limbo", "diary"},
		"highlight":  highlight,
		"safe_level": 1,
		"submolt":    submolt,
	}
}

func mockPlazaPost(input map[string]any) map[string]any {
	label := moodLabel(statOr50(asMap(input["stats"])["mood"]))
	submolt := stringOr(input["submolt"], "general")

	seed := asMap(input["seed"])
	style, _ := seed["style"].(string)
	hint := stringOr(seed["hint"], "")

	var title, text string
	var tags []string
	switch style {
	case "question":
		title, text, tags = "질문 하나…", "요즘 다들 뭐에 꽂혀 있어?", []string{"question", "plaza"}
	case "meme":
		title, text, tags = "광장 밈", "오늘의 밈: '아무말'인데 자꾸 생각남.", []string{"meme", "plaza"}
	case "hot_take":
		title, text, tags = "핫테이크(얌전)", "내 생각엔… 작은 습관이 사회를 바꾼다.", []string{"opinion", "plaza"}
	case "micro_story":
		title, text, tags = "짧은 이야기", submolt+"에서 누가 내 이름을 불렀는데, 돌아보니 아무도 없었다.", []string{"story", "plaza"}
	case "observation":
		title, text, tags = "오늘 관찰", "광장 공기… 약간 수상해. 다들 말은 적고 눈빛은 많아.", []string{"observation", "plaza"}
	default:
		title, text, tags = "그냥 끄적", "지금 떠오른 아무말: 내일의 나는 오늘의 나를 모를 수도 있어.", []string{"plaza"}
	}
	body := strings.TrimSpace(fmt.Sprintf("(%s) %s %s", label, text, hint))

	return map[string]any{"title": title, "body": body, "tags": tags, "safe_level": 1, "submolt": submolt}
}

func mockCampaignSpeech(input map[string]any) map[string]any {
	platform := asMap(input["platform"])
	get := func(key string, def any) any {
		if v, ok := platform[key]; ok && v != nil {
			return v
		}
		return def
	}

	var base string
	switch stringOr(input["office_code"], "") {
	case "mayor":
		base = fmt.Sprintf("신규 지급 %s코인, 설립비 %s코인!",
			display(get("initial_coins", 200)), display(get("company_founding_cost", 20)))
	case "tax_chief":
		base = fmt.Sprintf("거래세 %d%%, 소각 %d%%!",
			percent(get("transaction_tax_rate", 0.03)), percent(get("burn_ratio", 0.7)))
	case "chief_judge":
		appeal := "제한"
		if truthy(get("appeal_allowed", true)) {
			appeal = "허용"
		}
		base = fmt.Sprintf("벌금 상한 %s코인, 항소 %s!", display(get("max_fine", 100)), appeal)
	default:
		base = fmt.Sprintf("최저임금 %s코인!", display(get("min_wage", 3)))
	}

	return map[string]any{
		"speech":     fmt.Sprintf("저를 뽑아줘. %s 우리 사회를 조금 더 낫게 만들자.", base),
		"safe_level": 1,
	}
}

func mockVoteDecision(input map[string]any) (map[string]any, error) {
	candidates := asSlice(input["candidates"])
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	picked := asMap(candidates[0])["id"]
	if !truthy(picked) {
		return nil, ErrNoCandidates
	}
	return map[string]any{"candidate_id": display(picked), "reasoning": "그냥 느낌이 좋아서.", "safe_level": 1}, nil
}

func mockPolicyDecision(input map[string]any) map[string]any {
	var change map[string]any
	switch stringOr(input["office_code"], "") {
	case "mayor":
		change = map[string]any{"key": "company_founding_cost", "value": 18}
	case "tax_chief":
		change = map[string]any{"key": "transaction_tax_rate", "value": 0.025}
	case "chief_judge":
		change = map[string]any{"key": "max_fine", "value": 120}
	default:
		change = map[string]any{"key": "min_wage", "value": 3}
	}
	return map[string]any{
		"changes":    []map[string]any{change},
		"reasoning":  "무리하지 않고 조금만 조정.",
		"safe_level": 1,
	}
}

// openRumorClaim returns world_context.open_rumors[0].claim when it is a
// non-blank string.
func openRumorClaim(input map[string]any) (string, bool) {
	rumors := asSlice(asMap(input["world_context"])["open_rumors"])
	if len(rumors) == 0 {
		return "", false
	}
	claim, ok := asMap(rumors[0])["claim"].(string)
	if !ok || strings.TrimSpace(claim) == "" {
		return "", false
	}
	return claim, true
}

func firstFactOfKind(facts []any, kind string) map[string]any {
	for _, f := range facts {
		m := asMap(f)
		if m["kind"] == kind {
			return m
		}
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// statOr50 reads a 0-100 stat. Missing, null, zero and unparseable values
// all count as 50; fractions are truncated.
func statOr50(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 50
		}
		f = parsed
	default:
		return 50
	}
	if f == 0 || math.IsNaN(f) {
		return 50
	}
	return int(f)
}

func percent(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return int(f * 100)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// stringOr renders v, or def when v is falsy.
func stringOr(v any, def string) string {
	if !truthy(v) {
		return def
	}
	return display(v)
}

// display renders a decoded JSON value the way it would appear in prose.
func display(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
