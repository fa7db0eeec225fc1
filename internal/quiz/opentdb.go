package quiz

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultAPIURL is the public Open Trivia DB endpoint.
const DefaultAPIURL = "https://opentdb.com/api.php"

type opentdbResponse struct {
	ResponseCode int `json:"response_code"`
	Results      []struct {
		Category         string   `json:"category"`
		Question         string   `json:"question"`
		CorrectAnswer    string   `json:"correct_answer"`
		IncorrectAnswers []string `json:"incorrect_answers"`
	} `json:"results"`
}

// categoryCaser normalizes category names for display. The API is not
// consistent about capitalization across categories, so they are
// title-cased once here rather than by every client.
var categoryCaser = cases.Title(language.English)

// FetchQuestions pulls a fresh question set from an Open Trivia DB
// compatible API. Each question's answers are shuffled and the 1-based
// position of the correct one recorded. Prompts and choices are delivered
// HTML-escaped by the API and are unescaped here, at load time, so that an
// entity like &#039; can never smuggle a protocol delimiter into a payload.
func FetchQuestions(ctx context.Context, apiURL string, amount int, difficulty string) ([]Question, error) {
	requestURL := fmt.Sprintf("%s?amount=%d&difficulty=%s", apiURL, amount, url.QueryEscape(difficulty))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building question request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching questions: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching questions: unexpected status %s", res.Status)
	}

	var payload opentdbResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding question response: %w", err)
	}
	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("question API returned response code %d", payload.ResponseCode)
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("question API returned no questions")
	}

	questions := make([]Question, 0, len(payload.Results))
	for i, result := range payload.Results {
		correct := html.UnescapeString(result.CorrectAnswer)

		choices := make([]string, 0, len(result.IncorrectAnswers)+1)
		for _, answer := range result.IncorrectAnswers {
			choices = append(choices, html.UnescapeString(answer))
		}
		choices = append(choices, correct)
		rand.Shuffle(len(choices), func(i, j int) {
			choices[i], choices[j] = choices[j], choices[i]
		})

		correctIndex := 0
		for j, choice := range choices {
			if choice == correct {
				correctIndex = j + 1
				break
			}
		}

		questions = append(questions, Question{
			ID:       i + 1,
			Prompt:   html.UnescapeString(result.Question),
			Category: categoryCaser.String(html.UnescapeString(result.Category)),
			Choices:  choices,
			Correct:  correctIndex,
		})
	}

	return questions, nil
}
