// Package leadquiz はマーケティング用の診断クイズとリード獲得を扱います。
package leadquiz

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/trading-academy/academy-web/internal/models"
)

// ErrInvalidAnswers は未回答または未知の選択肢が含まれていることを表します。
var ErrInvalidAnswers = errors.New("invalid quiz answers")

// Option は設問の選択肢です。
type Option struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	Weight int    `json:"-"`
}

// Question はクイズの設問です。
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []Option `json:"options"`
}

var questions = []Question{
	{
		ID:     "experience",
		Prompt: "How much trading experience do you have?",
		Options: []Option{
			{Value: "none", Label: "I've never placed a trade", Weight: 0},
			{Value: "beginner", Label: "Less than a year", Weight: 1},
			{Value: "intermediate", Label: "1 to 3 years", Weight: 2},
			{Value: "advanced", Label: "More than 3 years", Weight: 3},
		},
	},
	{
		ID:     "capital",
		Prompt: "How much capital do you plan to trade with?",
		Options: []Option{
			{Value: "under_1k", Label: "Under $1,000", Weight: 0},
			{Value: "1k_10k", Label: "$1,000 to $10,000", Weight: 1},
			{Value: "10k_50k", Label: "$10,000 to $50,000", Weight: 2},
			{Value: "over_50k", Label: "Over $50,000", Weight: 3},
		},
	},
	{
		ID:     "goal",
		Prompt: "What is your main goal?",
		Options: []Option{
			{Value: "learn", Label: "Understand how markets work", Weight: 0},
			{Value: "side_income", Label: "Build a side income", Weight: 1},
			{Value: "full_time", Label: "Trade full time", Weight: 2},
			{Value: "automate", Label: "Automate my strategy", Weight: 3},
		},
	},
	{
		ID:     "time",
		Prompt: "How many hours a week can you commit?",
		Options: []Option{
			{Value: "under_5h", Label: "Under 5 hours", Weight: 0},
			{Value: "5_10h", Label: "5 to 10 hours", Weight: 1},
			{Value: "10_20h", Label: "10 to 20 hours", Weight: 2},
			{Value: "over_20h", Label: "More than 20 hours", Weight: 3},
		},
	},
	{
		ID:     "style",
		Prompt: "Which trading style appeals to you most?",
		Options: []Option{
			{Value: "unsure", Label: "Not sure yet", Weight: 0},
			{Value: "swing", Label: "Swing trading", Weight: 1},
			{Value: "day", Label: "Day trading", Weight: 2},
			{Value: "algorithmic", Label: "Algorithmic and bots", Weight: 3},
		},
	},
}

// Questions は設問の一覧を出題順に返します。
func Questions() []Question {
	out := make([]Question, len(questions))
	for i, q := range questions {
		q.Options = append([]Option(nil), q.Options...)
		out[i] = q
	}
	return out
}

// QuestionAt は 1 始まりの step に対応する設問を返します。
func QuestionAt(step int) (Question, bool) {
	if step < 1 || step > len(questions) {
		return Question{}, false
	}
	return Questions()[step-1], true
}

// Total は設問の数です。
func Total() int {
	return len(questions)
}

// Progress はクイズの進み具合です。
type Progress struct {
	Step    int     `json:"step"`
	Total   int     `json:"total"`
	Ratio   float64 `json:"ratio"`
	Percent int     `json:"percent"`
}

// NewProgress は step/total の進み具合を [0,1] に丸めて返します。
func NewProgress(step, total int) Progress {
	p := Progress{Step: step, Total: total}
	if total <= 0 {
		return p
	}
	ratio := float64(step) / float64(total)
	p.Ratio = math.Max(0, math.Min(1, ratio))
	p.Percent = int(math.Round(p.Ratio * 100))
	return p
}

// RecommendTier は合計点から推奨Tierを返します。6点未満はstarter、11点未満はacademy、それ以外はelite。
func RecommendTier(score int) models.Tier {
	switch {
	case score < 6:
		return models.TierStarter
	case score < 11:
		return models.TierAcademy
	default:
		return models.TierElite
	}
}

// Score は全設問が既知の選択肢で回答されていることを確認し、合計点と推奨Tierを返します。
func Score(answers map[string]string) (int, models.Tier, error) {
	var missing []string
	total := 0
	for _, q := range questions {
		value, ok := answers[q.ID]
		if !ok || value == "" {
			missing = append(missing, q.ID)
			continue
		}
		weight, ok := weightOf(q, value)
		if !ok {
			return 0, "", fmt.Errorf("%w: unknown option %q for %s", ErrInvalidAnswers, value, q.ID)
		}
		total += weight
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return 0, "", fmt.Errorf("%w: unanswered %v", ErrInvalidAnswers, missing)
	}
	return total, RecommendTier(total), nil
}

func weightOf(q Question, value string) (int, bool) {
	for _, o := range q.Options {
		if o.Value == value {
			return o.Weight, true
		}
	}
	return 0, false
}

// Recommendation は結果画面に表示する推奨プランの説明です。
type Recommendation struct {
	Tier     models.Tier `json:"tier"`
	Headline string      `json:"headline"`
	Summary  string      `json:"summary"`
}

var recommendations = map[models.Tier]Recommendation{
	models.TierStarter: {
		Tier:     models.TierStarter,
		Headline: "Start with the foundations",
		Summary:  "The Starter plan walks you through market basics, risk management and your first trades.",
	},
	models.TierAcademy: {
		Tier:     models.TierAcademy,
		Headline: "You're ready for the Academy",
		Summary:  "Full course library, weekly live sessions and the trader community to sharpen your edge.",
	},
	models.TierElite: {
		Tier:     models.TierElite,
		Headline: "Elite is built for you",
		Summary:  "Everything in Academy plus licensed trading bots and priority mentoring.",
	},
}

// RecommendationFor は tier の推奨プランを返します。
func RecommendationFor(tier models.Tier) Recommendation {
	if r, ok := recommendations[tier]; ok {
		return r
	}
	return recommendations[models.TierStarter]
}
