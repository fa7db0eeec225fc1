// This script is a small convenience tool for manipulating user accounts in the
// configured server database.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"

	"github.com/triviad/triviad/internal/core"
	"github.com/triviad/triviad/internal/core/data"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account management tools",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Registers new accounts in the database",
	Run:   AccountAddCommand,
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Deletes accounts from the database",
	Run:   AccountDeleteCommand,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the registered accounts",
	Run:   AccountListCommand,
}

var PermanentFlag bool

func initDB() *gorm.DB {
	// Change to the same directory as the config file so that any relative
	// paths in the config file will resolve.
	if ConfigFlag != "" {
		if err := os.Chdir(ConfigFlag); err != nil {
			fmt.Println("error changing to config directory:", err)
			os.Exit(1)
		}
	}

	cfg := core.LoadConfig(ConfigFlag)
	var dialector gorm.Dialector
	switch strings.ToLower(cfg.Database.Engine) {
	case "sqlite":
		dialector = sqlite.Open(cfg.QualifiedPath(cfg.Database.Filename))
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL())
	default:
		fmt.Println("unsupported database engine:", cfg.Database.Engine)
		os.Exit(1)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		fmt.Println("error connecting to database:", err.Error())
		os.Exit(1)
	}
	return db
}

func AccountAddCommand(cmd *cobra.Command, args []string) {
	db := initDB()

	username, args := popArg(args, "Username")
	password, _ := popArg(args, "Password")

	account, err := findAccount(db, username)
	if err != nil {
		fmt.Println("error finding account:", err)
		return
	} else if account != nil {
		fmt.Printf("account '%s' already exists; skipping\n", username)
		return
	}

	if err := data.CreateAccount(db, &data.Account{
		Username: username,
		Password: password,
	}); err != nil {
		fmt.Println("error creating account:", err)
		return
	}

	account, err = findAccount(db, username)
	if err != nil {
		fmt.Println("error finding account:", err)
		return
	}
	fmt.Printf("created account for '%s' (ID: %d)\n", account.Username, account.ID)
}

func AccountDeleteCommand(cmd *cobra.Command, args []string) {
	db := initDB()

	username, _ := popArg(args, "Username")

	account, err := findAccount(db, username)
	if err != nil {
		fmt.Println("error finding account:", err)
		return
	} else if account == nil {
		fmt.Printf("account '%s' does not exist\n", username)
		return
	}

	if PermanentFlag {
		if err := data.PermanentlyDeleteAccount(db, account); err != nil {
			fmt.Println("error deleting account:", err)
			return
		}
	} else {
		if err := data.DeleteAccount(db, account); err != nil {
			fmt.Println("error deleting account:", err)
			return
		}
	}
	fmt.Println("deleted account")
}

func AccountListCommand(cmd *cobra.Command, args []string) {
	db := initDB()

	accounts, err := data.AllAccounts(db)
	if err != nil {
		fmt.Println("error listing accounts:", err)
		return
	}

	for _, account := range accounts {
		fmt.Printf("%d\t%s\t(registered %s)\n",
			account.ID, account.Username, account.RegistrationDate.Format("2006-01-02"))
	}
}

func popArg(args []string, prompt string) (string, []string) {
	if len(args) == 1 {
		return args[0], nil
	} else if len(args) > 1 {
		return args[0], args[1:]
	}

	fmt.Printf("%s: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return scanner.Text(), args
}

func findAccount(db *gorm.DB, username string) (*data.Account, error) {
	account, err := data.FindAccountByUsername(db, username)
	if err != nil {
		return nil, fmt.Errorf("error looking up account: %v", err)
	}
	return account, nil
}
