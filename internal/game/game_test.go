package game

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/triviad/triviad/internal/core"
	"github.com/triviad/triviad/internal/core/client"
	"github.com/triviad/triviad/internal/protocol"
	"github.com/triviad/triviad/internal/quiz"
)

const (
	testQuota  = 2
	testReward = 5
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &core.Config{}
	cfg.GameServer.QuestionQuota = testQuota
	cfg.GameServer.AnswerReward = testReward

	users := quiz.NewUserStore()
	users.Add("alice", "wonderland")
	users.Add("bob", "builder")

	catalog, err := quiz.NewCatalog([]quiz.Question{
		{ID: 7, Prompt: "Pick the second choice.", Category: "General Knowledge", Choices: []string{"no", "yes", "no", "no"}, Correct: 2},
		{ID: 8, Prompt: "Pick the first choice.", Category: "General Knowledge", Choices: []string{"yes", "no"}, Correct: 1},
		{ID: 9, Prompt: "Pick the fourth choice.", Category: "General Knowledge", Choices: []string{"no", "no", "no", "yes"}, Correct: 4},
	})
	if err != nil {
		t.Fatalf("error building test catalog: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s := NewServer("GAME", cfg, logger, users, catalog)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return s
}

func newTestClient(t *testing.T) *client.Client {
	t.Helper()

	serverEnd, clientEnd := net.Pipe()
	t.Cleanup(func() {
		_ = serverEnd.Close()
		_ = clientEnd.Close()
	})

	return client.NewClient(serverEnd, 16)
}

// exchange sends one frame through the dispatcher and returns the single
// response frame it queued.
func exchange(t *testing.T, s *Server, c *client.Client, cmd protocol.Command, data string) protocol.Frame {
	t.Helper()

	send(t, s, c, cmd, data)
	return nextFrame(t, c)
}

func send(t *testing.T, s *Server, c *client.Client, cmd protocol.Command, data string) {
	t.Helper()

	raw, err := protocol.Encode(cmd, data)
	if err != nil {
		t.Fatalf("Encode(%s, %q) error = %v", cmd, data, err)
	}
	if err := s.Handle(context.Background(), c, raw); err != nil {
		t.Fatalf("Handle(%s) error = %v", cmd, err)
	}
}

func nextFrame(t *testing.T, c *client.Client) protocol.Frame {
	t.Helper()

	select {
	case raw := <-c.Queue():
		frame, err := protocol.Decode(raw)
		if err != nil {
			t.Fatalf("response frame failed to decode: %v", err)
		}
		return frame
	default:
		t.Fatal("expected a queued response frame")
		return protocol.Frame{}
	}
}

func expectNoFrame(t *testing.T, c *client.Client) {
	t.Helper()

	select {
	case raw := <-c.Queue():
		t.Fatalf("expected no response frame, got %q", raw)
	default:
	}
}

func login(t *testing.T, s *Server, c *client.Client, username, password string) {
	t.Helper()

	if got := exchange(t, s, c, protocol.Login, username+"#"+password); got.Command != protocol.LoginOK {
		t.Fatalf("login as %s: got %s %q, want LOGIN_OK", username, got.Command, got.Data)
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	t.Run("valid credentials", func(t *testing.T) {
		c := newTestClient(t)
		s.StartSession(c)

		got := exchange(t, s, c, protocol.Login, "alice#wonderland")
		if got.Command != protocol.LoginOK {
			t.Errorf("got %s %q, want LOGIN_OK", got.Command, got.Data)
		}
	})

	t.Run("wrong password stays anonymous", func(t *testing.T) {
		c := newTestClient(t)
		s.StartSession(c)

		got := exchange(t, s, c, protocol.Login, "alice#wrong")
		if got.Command != protocol.Error || !strings.Contains(got.Data, "password") {
			t.Errorf("got %s %q, want ERROR mentioning the password", got.Command, got.Data)
		}

		// The failed login must not authenticate the session.
		got = exchange(t, s, c, protocol.MyScore, "")
		if got.Command != protocol.Error {
			t.Errorf("MY_SCORE after failed login: got %s, want ERROR", got.Command)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		c := newTestClient(t)
		s.StartSession(c)

		got := exchange(t, s, c, protocol.Login, "mallory#whatever")
		if got.Command != protocol.Error || !strings.Contains(got.Data, "exist") {
			t.Errorf("got %s %q, want ERROR mentioning an unknown user", got.Command, got.Data)
		}
	})

	t.Run("second login rejected", func(t *testing.T) {
		c := newTestClient(t)
		s.StartSession(c)
		login(t, s, c, "alice", "wonderland")

		got := exchange(t, s, c, protocol.Login, "bob#builder")
		if got.Command != protocol.Error {
			t.Errorf("got %s, want ERROR for a second login", got.Command)
		}
	})

	t.Run("malformed credentials", func(t *testing.T) {
		c := newTestClient(t)
		s.StartSession(c)

		got := exchange(t, s, c, protocol.Login, "no-delimiter")
		if got.Command != protocol.Error {
			t.Errorf("got %s, want ERROR for malformed credentials", got.Command)
		}
	})
}

func TestAnonymousPreconditions(t *testing.T) {
	s := newTestServer(t)

	for _, cmd := range []protocol.Command{protocol.MyScore, protocol.GetQuestion} {
		c := newTestClient(t)
		s.StartSession(c)

		got := exchange(t, s, c, cmd, "")
		if got.Command != protocol.Error {
			t.Errorf("%s from an anonymous session: got %s, want ERROR", cmd, got.Command)
		}
	}

	c := newTestClient(t)
	s.StartSession(c)
	got := exchange(t, s, c, protocol.SendAnswer, "7#1")
	if got.Command != protocol.Error {
		t.Errorf("SEND_ANSWER from an anonymous session: got %s, want ERROR", got.Command)
	}
}

func TestUnknownCommand(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t)
	s.StartSession(c)

	// YOUR_SCORE is in the token set but is a server-side response.
	got := exchange(t, s, c, protocol.YourScore, "")
	if got.Command != protocol.Error {
		t.Errorf("got %s, want ERROR for an unhandled command", got.Command)
	}
}

func TestUndecodableFrameDropsConnection(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t)
	s.StartSession(c)

	if err := s.Handle(context.Background(), c, []byte("garbage")); err == nil {
		t.Fatal("expected Handle() to surface a decode error")
	}
	expectNoFrame(t, c)
}

func TestScoring(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t)
	s.StartSession(c)
	login(t, s, c, "alice", "wonderland")

	// A wrong answer records the question but scores nothing.
	got := exchange(t, s, c, protocol.SendAnswer, "7#1")
	if got.Command != protocol.WrongAnswer {
		t.Fatalf("got %s, want WRONG_ANSWER", got.Command)
	}
	if got := exchange(t, s, c, protocol.MyScore, ""); got.Data != "0" {
		t.Errorf("score after wrong answer = %s, want 0", got.Data)
	}
	if got := s.Users.AskedCount("alice"); got != 1 {
		t.Errorf("asked count after wrong answer = %d, want 1", got)
	}

	// A correct answer on a different question scores exactly the reward.
	got = exchange(t, s, c, protocol.SendAnswer, "8#1")
	if got.Command != protocol.CorrectAnswer {
		t.Fatalf("got %s, want CORRECT_ANSWER", got.Command)
	}
	if got := exchange(t, s, c, protocol.MyScore, ""); got.Data != "5" {
		t.Errorf("score after correct answer = %s, want 5", got.Data)
	}
}

func TestQuestionQuota(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t)
	s.StartSession(c)
	login(t, s, c, "alice", "wonderland")

	// Under quota: questions are served from the whole catalog.
	got := exchange(t, s, c, protocol.GetQuestion, "")
	if got.Command != protocol.YourQuestion {
		t.Fatalf("got %s, want YOUR_QUESTION", got.Command)
	}

	// Two resolved answers exhaust the quota regardless of catalog size.
	if got := exchange(t, s, c, protocol.SendAnswer, "7#2"); got.Command != protocol.CorrectAnswer {
		t.Fatalf("got %s, want CORRECT_ANSWER", got.Command)
	}
	if got := exchange(t, s, c, protocol.SendAnswer, "8#2"); got.Command != protocol.WrongAnswer {
		t.Fatalf("got %s, want WRONG_ANSWER", got.Command)
	}

	if got := exchange(t, s, c, protocol.GetQuestion, ""); got.Command != protocol.NoQuestions {
		t.Errorf("got %s, want NO_QUESTIONS once the quota is exhausted", got.Command)
	}
}

func TestQuestionPayloadShape(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t)
	s.StartSession(c)
	login(t, s, c, "alice", "wonderland")

	got := exchange(t, s, c, protocol.GetQuestion, "")
	if got.Command != protocol.YourQuestion {
		t.Fatalf("got %s, want YOUR_QUESTION", got.Command)
	}

	fields := strings.Split(got.Data, protocol.DataDelimiter)
	if len(fields) < 4 {
		t.Fatalf("payload %q has %d fields, want at least 4", got.Data, len(fields))
	}

	question, ok := s.Catalog.ByID(atoi(t, fields[0]))
	if !ok {
		t.Fatalf("payload names unknown question id %s", fields[0])
	}
	if count := atoi(t, fields[1]); count != len(question.Choices) {
		t.Errorf("choice count field = %d, want %d", count, len(question.Choices))
	}
	if fields[2] != question.Prompt {
		t.Errorf("prompt field = %q, want %q", fields[2], question.Prompt)
	}
	if fields[3] != question.Category {
		t.Errorf("category field = %q, want %q", fields[3], question.Category)
	}
	if len(fields) != 4+len(question.Choices) {
		t.Errorf("payload has %d fields, want %d", len(fields), 4+len(question.Choices))
	}
}

func TestAnswerCorrection(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t)
	s.StartSession(c)
	login(t, s, c, "alice", "wonderland")

	// An out-of-range choice starts the correction exchange.
	got := exchange(t, s, c, protocol.SendAnswer, "7#9")
	if got.Command != protocol.UnacceptableAnswer {
		t.Fatalf("got %s, want UNACCEPTABLE_ANSWER", got.Command)
	}
	if got := s.Users.AskedCount("alice"); got != 0 {
		t.Errorf("asked count during correction = %d, want 0", got)
	}

	// Another invalid attempt keeps the exchange open.
	got = exchange(t, s, c, protocol.SendAnswer, "7#first")
	if got.Command != protocol.UnacceptableAnswer {
		t.Fatalf("got %s, want UNACCEPTABLE_ANSWER again", got.Command)
	}

	// Unrelated commands are refused while a correction is pending.
	got = exchange(t, s, c, protocol.MyScore, "")
	if got.Command != protocol.Error {
		t.Fatalf("got %s, want ERROR for a non-answer during correction", got.Command)
	}

	// The corrected resend resolves normally.
	got = exchange(t, s, c, protocol.SendAnswer, "7#2")
	if got.Command != protocol.CorrectAnswer {
		t.Fatalf("got %s, want CORRECT_ANSWER", got.Command)
	}
	if got := s.Users.AskedCount("alice"); got != 1 {
		t.Errorf("asked count after resolution = %d, want 1", got)
	}

	// The correction state must be gone.
	if got := exchange(t, s, c, protocol.MyScore, ""); got.Command != protocol.YourScore {
		t.Errorf("got %s, want YOUR_SCORE once the correction resolved", got.Command)
	}
}

func TestHighscore(t *testing.T) {
	s := newTestServer(t)
	s.Users.Add("carol", "c")
	s.Users.Add("dave", "d")
	s.Users.AddScore("bob", 15)
	s.Users.AddScore("alice", 5)

	c := newTestClient(t)
	s.StartSession(c)

	got := exchange(t, s, c, protocol.Highscore, "")
	if got.Command != protocol.AllScore {
		t.Fatalf("got %s, want ALL_SCORE", got.Command)
	}

	want := "bob : 15\nalice : 5\ncarol : 0"
	if got.Data != want {
		t.Errorf("ALL_SCORE data = %q, want %q", got.Data, want)
	}
}

func TestHighscoreWithFewUsers(t *testing.T) {
	s := newTestServer(t)
	c := newTestClient(t)
	s.StartSession(c)

	got := exchange(t, s, c, protocol.Highscore, "")
	if got.Command != protocol.AllScore {
		t.Fatalf("got %s, want ALL_SCORE", got.Command)
	}
	if lines := strings.Split(got.Data, "\n"); len(lines) != 2 {
		t.Errorf("expected one line per registered user, got %q", got.Data)
	}
}

func TestLoggedUsers(t *testing.T) {
	s := newTestServer(t)

	first := newTestClient(t)
	s.StartSession(first)
	login(t, s, first, "alice", "wonderland")

	second := newTestClient(t)
	s.StartSession(second)

	// Anonymous connections may ask but do not appear.
	got := exchange(t, s, second, protocol.Logged, "")
	if got.Command != protocol.LoggedAnswer || got.Data != "alice" {
		t.Fatalf("got %s %q, want LOGGED_ANSWER with alice", got.Command, got.Data)
	}

	login(t, s, second, "bob", "builder")
	got = exchange(t, s, second, protocol.Logged, "")
	if got.Data != "alice\nbob" {
		t.Errorf("LOGGED_ANSWER data = %q, want %q", got.Data, "alice\nbob")
	}

	// Logout removes the user from the list but keeps the connection.
	send(t, s, first, protocol.Logout, "")
	expectNoFrame(t, first)

	got = exchange(t, s, second, protocol.Logged, "")
	if got.Data != "bob" {
		t.Errorf("LOGGED_ANSWER data after logout = %q, want %q", got.Data, "bob")
	}
}

func TestConnectionIsolation(t *testing.T) {
	s := newTestServer(t)

	alice := newTestClient(t)
	s.StartSession(alice)
	login(t, s, alice, "alice", "wonderland")

	bob := newTestClient(t)
	s.StartSession(bob)
	login(t, s, bob, "bob", "builder")

	// Interleave answers across the two connections.
	if got := exchange(t, s, alice, protocol.SendAnswer, "7#2"); got.Command != protocol.CorrectAnswer {
		t.Fatalf("alice: got %s, want CORRECT_ANSWER", got.Command)
	}
	if got := exchange(t, s, bob, protocol.SendAnswer, "7#1"); got.Command != protocol.WrongAnswer {
		t.Fatalf("bob: got %s, want WRONG_ANSWER", got.Command)
	}
	if got := exchange(t, s, bob, protocol.SendAnswer, "8#1"); got.Command != protocol.CorrectAnswer {
		t.Fatalf("bob: got %s, want CORRECT_ANSWER", got.Command)
	}

	// A pending correction on one connection must not affect the other.
	if got := exchange(t, s, alice, protocol.SendAnswer, "9#zzz"); got.Command != protocol.UnacceptableAnswer {
		t.Fatalf("alice: got %s, want UNACCEPTABLE_ANSWER", got.Command)
	}
	if got := exchange(t, s, bob, protocol.MyScore, ""); got.Data != "5" {
		t.Errorf("bob's score during alice's correction = %s, want 5", got.Data)
	}

	if got := exchange(t, s, alice, protocol.SendAnswer, "9#4"); got.Command != protocol.CorrectAnswer {
		t.Fatalf("alice: got %s, want CORRECT_ANSWER", got.Command)
	}

	if got := exchange(t, s, alice, protocol.MyScore, ""); got.Data != "10" {
		t.Errorf("alice's score = %s, want 10", got.Data)
	}
	if got := s.Users.AskedCount("alice"); got != 2 {
		t.Errorf("alice's asked count = %d, want 2", got)
	}
	if got := s.Users.AskedCount("bob"); got != 2 {
		t.Errorf("bob's asked count = %d, want 2", got)
	}
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	if err != nil {
		t.Fatalf("expected a number, got %q", s)
	}
	return n
}
