package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/triviad/triviad/internal/core"
	"github.com/triviad/triviad/internal/core/data"
	"github.com/triviad/triviad/internal/core/debug"
	"github.com/triviad/triviad/internal/game"
	"github.com/triviad/triviad/internal/quiz"
)

// Controller is the main entrypoint for triviad. It's responsible for initializing
// any shared resources (such as database and logging), defining the servers, and
// launching everything.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	wg     sync.WaitGroup

	db      *gorm.DB
	servers []*frontend
}

func (c *Controller) Start(ctx context.Context) {
	defer c.Shutdown()

	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		fmt.Printf("error initializing logger: %v\n", err)
		return
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.PprofEnabled {
		debug.StartUtilities(c.logger, c.Config.Debugging.PprofPort)
	}

	c.db, err = data.Initialize(c.Config)
	if err != nil {
		c.logger.Errorf("error connecting to database: %v", err)
		return
	}
	if err = data.SeedStockAccounts(c.db); err != nil {
		c.logger.Errorf("error seeding stock accounts: %v", err)
		return
	}

	users, err := c.loadUsers()
	if err != nil {
		c.logger.Errorf("error loading registered users: %v", err)
		return
	}

	catalog, err := c.loadCatalog(ctx)
	if err != nil {
		c.logger.Errorf("error loading question catalog: %v", err)
		return
	}

	// Configure and run all of our servers.
	c.declareServers(users, catalog)
	c.run(ctx)
}

// loadUsers builds the in-memory user store from the persisted accounts.
func (c *Controller) loadUsers() (*quiz.UserStore, error) {
	accounts, err := data.AllAccounts(c.db)
	if err != nil {
		return nil, err
	}

	users := quiz.NewUserStore()
	for _, account := range accounts {
		users.Add(account.Username, account.Password)
	}

	c.logger.Infof("loaded %d registered users", users.Len())
	return users, nil
}

// loadCatalog assembles the question catalog from whichever source is
// configured: the built-in static set or the Open Trivia Database API.
func (c *Controller) loadCatalog(ctx context.Context) (*quiz.Catalog, error) {
	var questions []quiz.Question
	var err error

	switch c.Config.Questions.Source {
	case "opentdb":
		questions, err = quiz.FetchQuestions(ctx,
			c.Config.Questions.APIURL,
			c.Config.Questions.Amount,
			c.Config.Questions.Difficulty,
		)
		if err != nil {
			return nil, err
		}
		c.logger.Infof("fetched %d questions from the Open Trivia Database", len(questions))
	case "static":
		questions = quiz.StaticQuestions()
	default:
		return nil, fmt.Errorf("unrecognized question source: %s", c.Config.Questions.Source)
	}

	return quiz.NewCatalog(questions)
}

// Set up all of the servers we want to run.
func (c *Controller) declareServers(users *quiz.UserStore, catalog *quiz.Catalog) {
	c.servers = []*frontend{
		{
			Address: c.Config.ListenAddress(),
			Backend: game.NewServer("GAME", c.Config, c.logger, users, catalog),
		},
	}
}

func (c *Controller) run(ctx context.Context) {
	// Start all of our servers. Failure to initialize one of the registered servers is considered terminal.
	for _, server := range c.servers {
		server.Config = c.Config
		server.Logger = c.logger

		if err := server.Start(ctx, &c.wg); err != nil {
			c.logger.Errorf("error starting %s server: %v", server.Backend.Identifier(), err)
			return
		}
	}

	c.wg.Wait()
}

func (c *Controller) Shutdown() {
	// Close the database after all of the servers have stopped so no handler
	// is left talking to a closed pool.
	c.wg.Wait()
	if c.db != nil {
		if err := data.Shutdown(c.db); err != nil {
			c.logger.Warnf("error closing database connection: %v", err)
		}
	}
}
