// Package game implements the quiz protocol state machine: it dispatches
// decoded frames against the session registry and the shared user/question
// stores, and queues response frames on the originating connection.
package game

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/triviad/triviad/internal/core"
	"github.com/triviad/triviad/internal/core/client"
	"github.com/triviad/triviad/internal/protocol"
	"github.com/triviad/triviad/internal/quiz"
)

// highscoreSize is the number of rows in the ALL_SCORE table.
const highscoreSize = 3

// validChoices are the only answer tokens SEND_ANSWER accepts. Anything
// else triggers the UNACCEPTABLE_ANSWER correction exchange.
var validChoices = map[string]struct{}{
	"1": {}, "2": {}, "3": {}, "4": {},
}

// Server is the quiz backend. One instance serves every connection; all
// shared state lives in the stores, which are safe for concurrent use.
type Server struct {
	Name   string
	Config *core.Config
	Logger *logrus.Logger

	Users   *quiz.UserStore
	Catalog *quiz.Catalog

	sessions *sessionRegistry
	payloads *cache
}

// NewServer builds the quiz backend around the loaded stores.
func NewServer(name string, cfg *core.Config, logger *logrus.Logger, users *quiz.UserStore, catalog *quiz.Catalog) *Server {
	return &Server{
		Name:     name,
		Config:   cfg,
		Logger:   logger,
		Users:    users,
		Catalog:  catalog,
		sessions: newSessionRegistry(),
		payloads: newCache(),
	}
}

func (s *Server) Identifier() string {
	return s.Name
}

func (s *Server) Init(_ context.Context) error {
	if s.Catalog == nil || s.Catalog.Size() == 0 {
		return fmt.Errorf("refusing to start with an empty question catalog")
	}
	s.Logger.Infof("[%s] serving %d questions to %d registered users",
		s.Name, s.Catalog.Size(), s.Users.Len())
	return nil
}

// StartSession registers a fresh anonymous session for a new connection.
func (s *Server) StartSession(c *client.Client) {
	s.sessions.add(c.ID)
}

// EndSession destroys the session for a closed connection.
func (s *Server) EndSession(c *client.Client) {
	s.sessions.remove(c.ID)
}

// Handle is the main entry point for processing client frames. A decode
// error is returned to the frontend, which drops the connection; every
// protocol-level problem past decoding is answered with an ERROR frame and
// keeps the connection alive.
func (s *Server) Handle(_ context.Context, c *client.Client, data []byte) error {
	frame, err := protocol.Decode(data)
	if err != nil {
		return fmt.Errorf("dropping connection %s: %w", c.ID, err)
	}

	if s.sessions.awaitingCorrection(c.ID) {
		return s.handleCorrection(c, frame)
	}

	switch frame.Command {
	case protocol.Login:
		return s.handleLogin(c, frame.Data)
	case protocol.Logout:
		return s.handleLogout(c)
	case protocol.MyScore:
		return s.handleMyScore(c)
	case protocol.Highscore:
		return s.handleHighscore(c)
	case protocol.Logged:
		return s.handleLogged(c)
	case protocol.GetQuestion:
		return s.handleGetQuestion(c)
	case protocol.SendAnswer:
		return s.handleSendAnswer(c, frame.Data)
	default:
		// A token from the server half of the vocabulary, or anything the
		// dispatcher has no handler for.
		return s.sendError(c, "Error! command does not exist.")
	}
}

func (s *Server) handleLogin(c *client.Client, data string) error {
	if _, ok := s.sessions.authenticatedUser(c.ID); ok {
		return s.sendError(c, "Already logged in.")
	}

	credentials, err := protocol.SplitFields(data, 1)
	if err != nil {
		return s.sendError(c, "Malformed credentials.")
	}
	username, password := credentials[0], credentials[1]

	if err := s.Users.Authenticate(username, password); err != nil {
		if errors.Is(err, quiz.ErrUnknownUser) {
			return s.sendError(c, "User does not exist.")
		}
		return s.sendError(c, "Wrong password.")
	}

	s.sessions.setAuthenticated(c.ID, username)
	s.Logger.WithField("connection", c.ID).Infof("[%s] %s logged in", s.Name, username)
	return c.Send(protocol.LoginOK, "")
}

// handleLogout destroys the session. No response frame is sent; the
// connection itself stays open and is reaped when the client hangs up.
func (s *Server) handleLogout(c *client.Client) error {
	if username, ok := s.sessions.authenticatedUser(c.ID); ok {
		s.Logger.WithField("connection", c.ID).Infof("[%s] %s logged out", s.Name, username)
	}
	s.sessions.reset(c.ID)
	return nil
}

func (s *Server) handleMyScore(c *client.Client) error {
	username, ok := s.sessions.authenticatedUser(c.ID)
	if !ok {
		return s.sendError(c, "Not logged in.")
	}

	score, ok := s.Users.Score(username)
	if !ok {
		return s.sendError(c, "User does not exist.")
	}
	return c.Send(protocol.YourScore, strconv.Itoa(score))
}

func (s *Server) handleHighscore(c *client.Client) error {
	rankings := s.Users.Rankings()
	if len(rankings) > highscoreSize {
		rankings = rankings[:highscoreSize]
	}

	lines := make([]string, 0, len(rankings))
	for _, ranking := range rankings {
		lines = append(lines, fmt.Sprintf("%s : %d", ranking.Username, ranking.Score))
	}
	return c.Send(protocol.AllScore, strings.Join(lines, "\n"))
}

func (s *Server) handleLogged(c *client.Client) error {
	return c.Send(protocol.LoggedAnswer, strings.Join(s.sessions.loggedIn(), "\n"))
}

func (s *Server) handleGetQuestion(c *client.Client) error {
	username, ok := s.sessions.authenticatedUser(c.ID)
	if !ok {
		return s.sendError(c, "Not logged in.")
	}

	if s.Users.AskedCount(username) >= s.Config.GameServer.QuestionQuota {
		return c.Send(protocol.NoQuestions, "")
	}

	question := s.Catalog.Random()
	return c.Send(protocol.YourQuestion, s.questionPayload(question))
}

// questionPayload returns the YOUR_QUESTION data field for a question:
// id#choiceCount#prompt#category#choice1#...#choiceN. The explicit choice
// count lets clients dispatch on the question's shape instead of guessing
// from parse failures. Payloads are memoized since the catalog never changes.
func (s *Server) questionPayload(q quiz.Question) string {
	key := "question/" + strconv.Itoa(q.ID)
	if cached, found := s.payloads.get(key); found {
		return cached.(string)
	}

	fields := make([]string, 0, len(q.Choices)+4)
	fields = append(fields, strconv.Itoa(q.ID), strconv.Itoa(len(q.Choices)), q.Prompt, q.Category)
	fields = append(fields, q.Choices...)
	payload := protocol.JoinFields(fields)

	s.payloads.put(key, payload)
	return payload
}

func (s *Server) handleSendAnswer(c *client.Client, data string) error {
	username, ok := s.sessions.authenticatedUser(c.ID)
	if !ok {
		return s.sendError(c, "Not logged in.")
	}

	fields, err := protocol.SplitFields(data, 1)
	if err != nil {
		return s.sendError(c, "Malformed answer.")
	}

	questionID, err := strconv.Atoi(fields[0])
	if err != nil {
		return s.sendError(c, "Malformed answer.")
	}

	choice := fields[1]
	if _, ok := validChoices[choice]; !ok {
		s.sessions.setAwaitingCorrection(c.ID, true)
		return c.Send(protocol.UnacceptableAnswer, "")
	}

	return s.resolveAnswer(c, username, questionID, choice)
}

// handleCorrection processes the frame following an UNACCEPTABLE_ANSWER.
// Only a SEND_ANSWER resolves the exchange; anything else is answered with
// ERROR and leaves the correction state in place.
func (s *Server) handleCorrection(c *client.Client, frame protocol.Frame) error {
	if frame.Command != protocol.SendAnswer {
		return s.sendError(c, "Awaiting corrected answer.")
	}
	return s.handleSendAnswer(c, frame.Data)
}

// resolveAnswer settles a syntactically valid answer. The question id is
// recorded as asked on every resolved answer, correct or not, but never
// during the correction retries themselves.
func (s *Server) resolveAnswer(c *client.Client, username string, questionID int, choice string) error {
	s.sessions.setAwaitingCorrection(c.ID, false)

	question, ok := s.Catalog.ByID(questionID)
	if !ok {
		return s.sendError(c, "Unknown question.")
	}

	s.Users.RecordAsked(username, questionID)

	answer, _ := strconv.Atoi(choice)
	if answer == question.Correct {
		s.Users.AddScore(username, s.Config.GameServer.AnswerReward)
		return c.Send(protocol.CorrectAnswer, "")
	}
	return c.Send(protocol.WrongAnswer, "")
}

func (s *Server) sendError(c *client.Client, reason string) error {
	return c.Send(protocol.Error, reason)
}
