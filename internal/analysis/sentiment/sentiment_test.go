package sentiment

import (
	"testing"
	"time"

	"github.com/seenimoa/optionpulse/pkg/models"
)

func TestScoreHeadlineBullish(t *testing.T) {
	score, conf := ScoreHeadline("Reliance shares rally 5% on strong growth and positive results")
	if score <= 0 {
		t.Errorf("expected positive score for bullish headline, got %.4f", score)
	}
	if conf <= 0.1 {
		t.Errorf("expected matched confidence, got %.4f", conf)
	}
}

func TestScoreHeadlineBearish(t *testing.T) {
	score, _ := ScoreHeadline("Market crash: stocks plunge amid fraud investigation concerns")
	if score >= 0 {
		t.Errorf("expected negative score for bearish headline, got %.4f", score)
	}
}

func TestScoreHeadlineNeutral(t *testing.T) {
	score, conf := ScoreHeadline("Company announces new office location in Bengaluru")
	if score != 0 {
		t.Errorf("expected zero score for neutral headline, got %.4f", score)
	}
	if conf > 0.2 {
		t.Errorf("expected low confidence for neutral, got %.4f", conf)
	}
}

func TestWholeWordMatching(t *testing.T) {
	// "executive" must not match "cut"; "buyback" is not "buy"
	if score, _ := ScoreHeadline("Executive reshuffle at Infosys"); score != 0 {
		t.Errorf("substring matched inside a word, got %.4f", score)
	}
	tests := []struct {
		headline string
		want     Tone
	}{
		{"Nifty surged past 25,000", ToneBullish},
		{"Sensex slipped as FII selling continued", ToneBearish},
		{"Bank Nifty ends flat", ToneNeutral},
		{"Profit booking drags Nifty lower", ToneBearish},
		{"Short covering lifts Bank Nifty to record high", ToneBullish},
	}
	for _, tt := range tests {
		score, _ := ScoreHeadline(tt.headline)
		if got := Classify(score); got != tt.want {
			t.Errorf("%q: tone %s (score %.2f), want %s", tt.headline, got, score, tt.want)
		}
	}
}

func TestScoreArticleUsesSummary(t *testing.T) {
	a := models.NewsArticle{Title: "Markets today", Summary: "Benchmarks rally on strong buying"}
	if s := ScoreArticle(a); s <= 0 {
		t.Errorf("expected positive score from summary, got %.4f", s)
	}
}

func TestClassifyAndMarker(t *testing.T) {
	tests := []struct {
		score  float64
		tone   Tone
		marker string
	}{
		{0.8, ToneBullish, "🟢"},
		{0.3, ToneNeutral, ""},
		{0, ToneNeutral, ""},
		{-0.31, ToneBearish, "🔴"},
	}
	for _, tt := range tests {
		tone := Classify(tt.score)
		if tone != tt.tone {
			t.Errorf("Classify(%.2f) = %s, want %s", tt.score, tone, tt.tone)
		}
		if tone.Marker() != tt.marker {
			t.Errorf("%s marker = %q, want %q", tone, tone.Marker(), tt.marker)
		}
	}
}

func TestAgrees(t *testing.T) {
	if !ToneBullish.Agrees(models.DirectionCE) || !ToneBearish.Agrees(models.DirectionPE) {
		t.Error("matching tone should agree")
	}
	if ToneBullish.Agrees(models.DirectionPE) || ToneNeutral.Agrees(models.DirectionCE) {
		t.Error("opposite or neutral tone should not agree")
	}
}

func TestAggregateDecaysOldNews(t *testing.T) {
	now := time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)
	articles := []models.NewsArticle{
		{Title: "Nifty rally gains strength", PublishedAt: now.Add(-time.Hour)},
		{Title: "Market crash fears as stocks plunge", PublishedAt: now.Add(-72 * time.Hour)},
	}
	score, tone := Aggregate(articles, now)
	if score <= 0 || tone != ToneBullish {
		t.Errorf("fresh bullish news should dominate, got %.4f %s", score, tone)
	}

	articles[0].PublishedAt = now.Add(-72 * time.Hour)
	articles[1].PublishedAt = now
	score, tone = Aggregate(articles, now)
	if score >= 0 || tone != ToneBearish {
		t.Errorf("fresh bearish news should dominate, got %.4f %s", score, tone)
	}
}

func TestAggregateEmpty(t *testing.T) {
	score, tone := Aggregate(nil, time.Now())
	if score != 0 || tone != ToneNeutral {
		t.Errorf("expected neutral for no articles, got %.4f %s", score, tone)
	}
}
