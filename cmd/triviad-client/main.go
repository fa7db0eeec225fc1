// A terminal client for the triviad quiz server. It connects, logs the user
// in, and then drives the question/answer exchange from a small menu.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/triviad/triviad/internal/protocol"
)

var ServerFlag string

func main() {
	rootCmd := &cobra.Command{
		Use:   "triviad-client",
		Short: "Terminal client for the triviad quiz server",
		Run:   ClientCommand,
	}
	rootCmd.Flags().StringVarP(&ServerFlag, "server", "s", "127.0.0.1:5631", "Address of the quiz server")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
	}
}

func ClientCommand(cmd *cobra.Command, args []string) {
	conn, err := net.Dial("tcp", ServerFlag)
	if err != nil {
		fmt.Println("error connecting to server:", err)
		os.Exit(1)
	}
	defer conn.Close()

	session := &session{
		conn:  conn,
		input: bufio.NewScanner(os.Stdin),
	}

	if err := session.login(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	session.menuLoop()
}

type session struct {
	conn  net.Conn
	input *bufio.Scanner
}

// request sends one frame and blocks until the server's response arrives.
func (s *session) request(cmd protocol.Command, data string) (protocol.Frame, error) {
	raw, err := protocol.Encode(cmd, data)
	if err != nil {
		return protocol.Frame{}, err
	}
	if _, err := s.conn.Write(raw); err != nil {
		return protocol.Frame{}, fmt.Errorf("error sending to server: %v", err)
	}

	buffer := make([]byte, 1024)
	n, err := s.conn.Read(buffer)
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("server closed the connection: %v", err)
	}
	return protocol.Decode(buffer[:n])
}

// login prompts for credentials until the server accepts them.
func (s *session) login() error {
	for {
		username := s.prompt("Username: ")
		password := s.prompt("Password: ")

		frame, err := s.request(protocol.Login, protocol.JoinFields([]string{username, password}))
		if err != nil {
			return err
		}

		switch frame.Command {
		case protocol.LoginOK:
			fmt.Printf("Welcome, %s!\n", username)
			return nil
		case protocol.Error:
			fmt.Println(frame.Data)
		default:
			return fmt.Errorf("unexpected response: %s", frame.Command)
		}
	}
}

func (s *session) menuLoop() {
	for {
		fmt.Println("\np - Play a trivia question")
		fmt.Println("s - Show my score")
		fmt.Println("h - Show the highscore table")
		fmt.Println("l - Show logged in users")
		fmt.Println("q - Quit")

		switch s.prompt("> ") {
		case "p":
			s.play()
		case "s":
			s.showScore()
		case "h":
			s.showHighscore()
		case "l":
			s.showLogged()
		case "q":
			s.quit()
			return
		default:
			fmt.Println("Unknown option.")
		}
	}
}

func (s *session) play() {
	frame, err := s.request(protocol.GetQuestion, "")
	if err != nil {
		fmt.Println(err)
		return
	}

	switch frame.Command {
	case protocol.NoQuestions:
		fmt.Println("No more questions for you this round.")
		return
	case protocol.YourQuestion:
	default:
		fmt.Println(frame.Data)
		return
	}

	q, err := parseQuestion(frame.Data)
	if err != nil {
		fmt.Println("error reading question:", err)
		return
	}

	fmt.Printf("\n[%s] %s\n", q.category, q.prompt)
	for i, choice := range q.choices {
		fmt.Printf("  %d. %s\n", i+1, choice)
	}

	// The server holds the exchange open until it gets an acceptable choice.
	for {
		answer := s.prompt("Your answer: ")
		frame, err = s.request(protocol.SendAnswer, protocol.JoinFields([]string{strconv.Itoa(q.id), answer}))
		if err != nil {
			fmt.Println(err)
			return
		}

		switch frame.Command {
		case protocol.CorrectAnswer:
			fmt.Println("Correct!")
			return
		case protocol.WrongAnswer:
			fmt.Println("Wrong answer.")
			return
		case protocol.UnacceptableAnswer:
			fmt.Printf("Please answer with a number between 1 and %d.\n", len(q.choices))
		default:
			fmt.Println(frame.Data)
			return
		}
	}
}

func (s *session) showScore() {
	frame, err := s.request(protocol.MyScore, "")
	if err != nil {
		fmt.Println(err)
		return
	}
	if frame.Command != protocol.YourScore {
		fmt.Println(frame.Data)
		return
	}
	fmt.Println("Your score:", frame.Data)
}

func (s *session) showHighscore() {
	frame, err := s.request(protocol.Highscore, "")
	if err != nil {
		fmt.Println(err)
		return
	}
	if frame.Command != protocol.AllScore {
		fmt.Println(frame.Data)
		return
	}
	fmt.Println("Highscores:")
	fmt.Println(frame.Data)
}

func (s *session) showLogged() {
	frame, err := s.request(protocol.Logged, "")
	if err != nil {
		fmt.Println(err)
		return
	}
	if frame.Command != protocol.LoggedAnswer {
		fmt.Println(frame.Data)
		return
	}
	fmt.Println("Logged in users:")
	fmt.Println(frame.Data)
}

// quit logs out and hangs up. LOGOUT has no response frame.
func (s *session) quit() {
	if raw, err := protocol.Encode(protocol.Logout, ""); err == nil {
		_, _ = s.conn.Write(raw)
	}
	fmt.Println("Goodbye!")
}

func (s *session) prompt(label string) string {
	fmt.Print(label)
	if !s.input.Scan() {
		return ""
	}
	return strings.TrimSpace(s.input.Text())
}

// question is the client-side view of a YOUR_QUESTION payload.
type question struct {
	id       int
	prompt   string
	category string
	choices  []string
}

// parseQuestion unpacks a YOUR_QUESTION payload: the question id, the number
// of choices, the prompt, the category, and then each choice.
func parseQuestion(data string) (question, error) {
	fields := strings.Split(data, protocol.DataDelimiter)
	if len(fields) < 4 {
		return question{}, fmt.Errorf("malformed question payload: %q", data)
	}

	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return question{}, fmt.Errorf("malformed question id: %q", fields[0])
	}
	count, err := strconv.Atoi(fields[1])
	if err != nil || len(fields) != 4+count {
		return question{}, fmt.Errorf("malformed choice count: %q", data)
	}

	return question{
		id:       id,
		prompt:   fields[2],
		category: fields[3],
		choices:  fields[4:],
	}, nil
}
