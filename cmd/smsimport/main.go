package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pesatrack/backend/internal/config"
	"github.com/pesatrack/backend/internal/database"
	"github.com/pesatrack/backend/internal/logger"
	"github.com/pesatrack/backend/internal/mpesa"
	"github.com/pesatrack/backend/internal/services"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(log)
	case "parse":
		runParse(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("M-Pesa SMS import tool")
	fmt.Println("\nUsage:")
	fmt.Println("  smsimport <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import    Import a file of SMS messages and print the session")
	fmt.Println("  parse     Parse a file of SMS messages without saving anything")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nMessages are read one per line, or separated by blank lines when the file has any.")
	fmt.Println("Run 'smsimport <command> -h' for more information on a command.")
}

func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a text file of SMS messages (- for stdin)")
	userID := fs.String("user", "", "User the transactions belong to")
	usePostgres := fs.Bool("postgres", false, "Write to Postgres instead of an in-memory store")
	fallback := fs.String("fallback", "", "Fallback date (2006-01-02) for messages without one")
	fs.Parse(os.Args[2:])

	if *filePath == "" || *userID == "" {
		log.Fatal().Msg("Usage: smsimport import -file PATH -user ID [-postgres] [-fallback DATE]")
	}

	messages, err := loadMessages(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read messages")
	}
	fallbackDate, err := parseFallback(*fallback)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fallback date")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	cfg := config.LoadIngestConfig()
	defaults, err := config.LoadDefaultCategories()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load default categories")
	}

	var (
		store      services.TransactionStore = services.NewMemoryStore()
		categories services.CategoryProvider = services.StaticCategories(defaults)
	)
	if *usePostgres {
		viper.SetConfigFile(".env")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		viper.ReadInConfig()

		db, err := database.Open(ctx, database.LoadConfig(viper.GetViper()), log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		categoryService, err := services.NewCategoryService(db, cfg.CategoryCacheTTL, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize categories")
		}
		defer categoryService.Close()
		if _, err := categoryService.SeedDefaults(ctx, defaults); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed default categories")
		}

		store = services.NewPostgresStore(db, nil, cfg.HashIndexTTL, log)
		categories = categoryService
	}

	log.Info().Int("messages", len(messages)).Str("user_id", *userID).Msg("Starting import")

	importService := services.NewImportService(store, categories, nil, cfg, log)
	session, err := importService.ImportBatch(ctx, *userID, messages, fallbackDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	printJSON(session)
}

func runParse(log zerolog.Logger) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	filePath := fs.String("file", "-", "Path to a text file of SMS messages (- for stdin)")
	fallback := fs.String("fallback", "", "Fallback date (2006-01-02) for messages without one")
	fs.Parse(os.Args[2:])

	messages, err := loadMessages(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read messages")
	}
	fallbackDate, err := parseFallback(*fallback)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid fallback date")
	}

	parser := mpesa.NewParser(mpesa.WithLocation(config.LoadIngestConfig().Location()))

	results := make([]parseResult, 0, len(messages))
	for _, msg := range messages {
		parsed, err := parser.Parse(msg, fallbackDate)
		res := parseResult{Message: msg, Parsed: parsed}
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)
	}

	printJSON(results)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode output: %v\n", err)
		os.Exit(1)
	}
}
