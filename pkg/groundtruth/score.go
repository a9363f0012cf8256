package groundtruth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/lehigh-university-libraries/docgeo/pkg/document"
)

var whitespace = regexp.MustCompile(`\s+`)

// Result compares one labelled value against the tokens found inside its box.
type Result struct {
	Key                  string  `json:"key,omitempty" yaml:"key,omitempty"`
	Page                 int     `json:"page" yaml:"page"`
	Expected             string  `json:"expected" yaml:"expected"`
	Recognized           string  `json:"recognized" yaml:"recognized"`
	CharacterSimilarity  float64 `json:"character_similarity" yaml:"character_similarity"`
	WordAccuracy         float64 `json:"word_accuracy" yaml:"word_accuracy"`
	WordErrorRate        float64 `json:"word_error_rate" yaml:"word_error_rate"`
	TotalWordsExpected   int     `json:"total_words_expected" yaml:"total_words_expected"`
	TotalWordsRecognized int     `json:"total_words_recognized" yaml:"total_words_recognized"`
	CorrectWords         int     `json:"correct_words" yaml:"correct_words"`
	Substitutions        int     `json:"substitutions" yaml:"substitutions"`
	Deletions            int     `json:"deletions" yaml:"deletions"`
	Insertions           int     `json:"insertions" yaml:"insertions"`
}

// Summary averages a set of results.
type Summary struct {
	Results                    []Result `json:"results" yaml:"results"`
	AverageCharacterSimilarity float64  `json:"average_character_similarity" yaml:"average_character_similarity"`
	AverageWordAccuracy        float64  `json:"average_word_accuracy" yaml:"average_word_accuracy"`
}

// ReadRecords loads every record of a JSON Lines file written by Store.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		records = append(records, r)
	}
	return records, scanner.Err()
}

// Score compares each record on page that carries a value with the tokens
// whose centre falls inside the record's box. Record boxes are normalized to
// the page, tokens are in pixels of a width x height image.
func Score(records []Record, page, width, height int, tokens []document.Token) Summary {
	s := Summary{Results: []Result{}}
	for _, r := range records {
		if r.Page != page || r.Value == nil {
			continue
		}

		var words []string
		for _, t := range tokens {
			cx := float64(t.X0+t.X1) / 2 / float64(width)
			cy := float64(t.Y0+t.Y1) / 2 / float64(height)
			if cx >= r.X0 && cx <= r.X1 && cy >= r.Y0 && cy <= r.Y1 {
				words = append(words, t.Text)
			}
		}

		res := Compare(*r.Value, strings.Join(words, " "))
		res.Page = page
		if r.Key != nil {
			res.Key = *r.Key
		}
		s.Results = append(s.Results, res)
	}

	if n := float64(len(s.Results)); n > 0 {
		for _, res := range s.Results {
			s.AverageCharacterSimilarity += res.CharacterSimilarity
			s.AverageWordAccuracy += res.WordAccuracy
		}
		s.AverageCharacterSimilarity /= n
		s.AverageWordAccuracy /= n
	}
	return s
}

// Compare computes character and word level accuracy of recognized against
// expected, ignoring case and runs of whitespace.
func Compare(expected, recognized string) Result {
	exp := normalizeText(expected)
	rec := normalizeText(recognized)
	expWords := strings.Fields(exp)
	recWords := strings.Fields(rec)

	acc, correct, subs, dels, ins := wordMetrics(expWords, recWords)
	return Result{
		Expected:             expected,
		Recognized:           recognized,
		CharacterSimilarity:  similarity(exp, rec),
		WordAccuracy:         acc,
		WordErrorRate:        1 - acc,
		TotalWordsExpected:   len(expWords),
		TotalWordsRecognized: len(recWords),
		CorrectWords:         correct,
		Substitutions:        subs,
		Deletions:            dels,
		Insertions:           ins,
	}
}

func normalizeText(text string) string {
	return strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(text), " "))
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

// wordMetrics aligns the two word sequences and counts edit operations.
func wordMetrics(exp, rec []string) (float64, int, int, int, int) {
	m, n := len(exp), len(rec)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if exp[i-1] == rec[j-1] {
				dp[i][j] = dp[i-1][j-1]
			} else {
				dp[i][j] = 1 + min(dp[i-1][j], dp[i][j-1], dp[i-1][j-1])
			}
		}
	}

	i, j := m, n
	subs, dels, ins, correct := 0, 0, 0, 0
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && exp[i-1] == rec[j-1]:
			correct++
			i--
			j--
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+1:
			subs++
			i--
			j--
		case i > 0 && dp[i][j] == dp[i-1][j]+1:
			dels++
			i--
		default:
			ins++
			j--
		}
	}

	if m == 0 {
		if n == 0 {
			return 1, 0, 0, 0, 0
		}
		return 0, 0, 0, 0, ins
	}
	return 1 - float64(subs+dels+ins)/float64(m), correct, subs, dels, ins
}
