// Package wake scores candidate audio against configured wake phrases by
// transcribing it and comparing the words phonetically.
package wake

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, language string) (string, error)
}

// nonPhoneticPenalty scales similarity for windows that share no Double
// Metaphone code with the phrase.
const nonPhoneticPenalty = 0.6

type PhraseScorer struct {
	stt      Transcriber
	language string
	phrases  map[string][]string
}

func NewPhraseScorer(stt Transcriber, language string, phrases ...string) (*PhraseScorer, error) {
	s := &PhraseScorer{
		stt:      stt,
		language: language,
		phrases:  make(map[string][]string, len(phrases)),
	}
	for _, p := range phrases {
		tokens := tokenize(p)
		if len(tokens) == 0 {
			return nil, fmt.Errorf("wake phrase %q has no words", p)
		}
		s.phrases[p] = tokens
	}
	if len(s.phrases) == 0 {
		return nil, fmt.Errorf("no wake phrases configured")
	}
	return s, nil
}

// Score returns a confidence in [0, 1] per phrase.
func (s *PhraseScorer) Score(ctx context.Context, samples []float32) (map[string]float64, error) {
	text, err := s.stt.Transcribe(ctx, samples, s.language)
	if err != nil {
		return nil, fmt.Errorf("transcribing candidate: %w", err)
	}
	return s.ScoreText(text), nil
}

// ScoreText scores an already transcribed candidate.
func (s *PhraseScorer) ScoreText(text string) map[string]float64 {
	words := tokenize(text)
	scores := make(map[string]float64, len(s.phrases))
	for phrase, tokens := range s.phrases {
		scores[phrase] = bestWindowScore(words, tokens)
	}
	return scores
}

// bestWindowScore slides a window as wide as the phrase over the words.
func bestWindowScore(words, phrase []string) float64 {
	if len(words) == 0 {
		return 0
	}

	phraseFull := strings.Join(phrase, " ")
	phraseJoined := strings.Join(phrase, "")
	phraseCodes := codesFor(phrase)

	width := len(phrase)
	best := 0.0
	// A phrase word may be transcribed as two words, so windows one word
	// wider are tried too.
	for _, w := range []int{width, width + 1} {
		size := min(w, len(words))
		for i := 0; i+size <= len(words); i++ {
			window := words[i : i+size]

			score := matchr.JaroWinkler(strings.Join(window, " "), phraseFull, false)
			if s := matchr.JaroWinkler(strings.Join(window, ""), phraseJoined, false); s > score {
				score = s
			}
			if !overlaps(codesFor(window), phraseCodes) {
				score *= nonPhoneticPenalty
			}
			if score > best {
				best = score
			}
		}
	}
	return best
}

func codesFor(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2+1)
	add := func(word string) {
		p, s := matchr.DoubleMetaphone(word)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	for _, t := range tokens {
		add(t)
	}
	if len(tokens) > 1 {
		add(strings.Join(tokens, ""))
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
