package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to the triviad
// server and its tools.
type Config struct {
	// Hostname or IP address on which the server will listen for connections.
	Hostname string `mapstructure:"hostname"`
	// Maximum number of concurrent connections the server will allow.
	MaxConnections int `mapstructure:"max_connections"`

	Logging struct {
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
	} `mapstructure:"logging"`

	Database struct {
		// Database engine backing the account store. Options: sqlite, postgres.
		Engine string `mapstructure:"engine"`
		// Filename of the SQLite database, relative to the config directory.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres for triviad.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to ${name}.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	GameServer struct {
		// Port on which the quiz server will listen.
		Port int `mapstructure:"port"`
		// Number of resolved answers after which GET_QUESTION returns NO_QUESTIONS.
		QuestionQuota int `mapstructure:"question_quota"`
		// Points awarded for a correct answer.
		AnswerReward int `mapstructure:"answer_reward"`
		// Number of frames that may be queued per connection before the
		// client is considered stalled and disconnected.
		OutboundQueueDepth int `mapstructure:"outbound_queue_depth"`
	} `mapstructure:"game_server"`

	Questions struct {
		// Where the question catalog is loaded from. Options: opentdb, static.
		Source string `mapstructure:"source"`
		// Number of questions to request from the API.
		Amount int `mapstructure:"amount"`
		// Question difficulty requested from the API.
		Difficulty string `mapstructure:"difficulty"`
		// Base URL of the Open Trivia DB compatible API.
		APIURL string `mapstructure:"api_url"`
	} `mapstructure:"questions"`

	Debugging struct {
		// Enable extra info-providing mechanisms for the server.
		PprofEnabled bool `mapstructure:"pprof_enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log decoded frames to stdout.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`

	configDir string
}

const envVarPrefix = "TRIVIAD"

func setDefaults() {
	viper.SetDefault("hostname", "127.0.0.1")
	viper.SetDefault("max_connections", 100)
	viper.SetDefault("logging.log_level", "info")
	viper.SetDefault("database.engine", "sqlite")
	viper.SetDefault("database.filename", "triviad.db")
	viper.SetDefault("game_server.port", 5631)
	viper.SetDefault("game_server.question_quota", 2)
	viper.SetDefault("game_server.answer_reward", 5)
	viper.SetDefault("game_server.outbound_queue_depth", 32)
	viper.SetDefault("questions.source", "static")
	viper.SetDefault("questions.amount", 10)
	viper.SetDefault("questions.difficulty", "easy")
	viper.SetDefault("questions.api_url", "https://opentdb.com/api.php")
}

// LoadConfig initializes Viper with the contents of the config file under configPath.
func LoadConfig(configPath string) *Config {
	viper.AddConfigPath(configPath)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix(envVarPrefix)
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if errors.Is(err, viper.ConfigFileNotFoundError{}) {
			fmt.Printf("error reading config file: no config file in path %s", configPath)
		} else {
			fmt.Printf("error reading config file: %v", err)
		}
		os.Exit(1)
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range viper.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := viper.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			fmt.Printf("error binding %s to %s", k, envVarPrefix+"_"+envVar)
			os.Exit(1)
		}
	}

	config := &Config{configDir: configPath}
	if err := viper.Unmarshal(config); err != nil {
		fmt.Printf("error unmarshaling config object: %v", err)
		os.Exit(1)
	}
	return config
}

// QualifiedPath returns file as a path relative to the config directory.
func (c *Config) QualifiedPath(file string) string {
	return filepath.Join(c.configDir, file)
}

// ListenAddress returns the address on which the quiz server accepts clients.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.GameServer.Port)
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a Postgres connection string generated from the
// provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}
