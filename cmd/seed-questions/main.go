package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Akhilsri/SheetSolver-sub000/internal/config"
	"github.com/Akhilsri/SheetSolver-sub000/internal/domain/repository"
	pgRepo "github.com/Akhilsri/SheetSolver-sub000/internal/repository/postgres"
	redisRepo "github.com/Akhilsri/SheetSolver-sub000/internal/repository/redis"
	"github.com/Akhilsri/SheetSolver-sub000/internal/service"
	"github.com/Akhilsri/SheetSolver-sub000/pkg/database"
)

// Загрузка вопросов в банк и обслуживание миграций.
//
//	seed-questions -file questions.xlsx
//	seed-questions -file questions.json
//	seed-questions -force-version 2   # снять dirty-состояние после неудачной миграции
//	seed-questions -stats
func main() {
	file := flag.String("file", "", "файл с вопросами (.json или .xlsx)")
	forceVersion := flag.Int("force-version", -1, "принудительно выставить версию миграций и выйти")
	statsOnly := flag.Bool("stats", false, "только вывести количество вопросов по темам")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	if *forceVersion >= 0 {
		fmt.Printf("Forcing migration version to %d to clean dirty state...\n", *forceVersion)
		if err := database.ForceMigrationVersion(db, cfg.Database.MigrationsPath, *forceVersion); err != nil {
			log.Fatalf("Failed to force version: %v", err)
		}
		fmt.Println("Success! Dirty state cleaned. You can now run the app normally.")
		return
	}

	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	questionRepo := pgRepo.NewQuestionRepo(db)
	bank := service.NewQuestionBankService(questionRepo, newTopicService(cfg, questionRepo))

	if !*statsOnly {
		if *file == "" {
			flag.Usage()
			os.Exit(2)
		}
		inputs, err := readQuestions(*file)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *file, err)
		}
		byTopic, err := bank.Import(ctx, inputs)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		for topic, n := range byTopic {
			fmt.Printf("  + %-30s %d\n", topic, n)
		}
	}

	stats, err := bank.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to collect stats: %v", err)
	}
	fmt.Println("Question bank:")
	for _, s := range stats {
		fmt.Printf("  %-32s %d\n", s.Topic, s.Questions)
	}
}

// newTopicService подключает кеш тем, чтобы сбросить его после импорта.
// Без Redis импорт все равно выполняется, сервер подхватит темы при следующем обновлении.
func newTopicService(cfg *config.Config, questionRepo repository.QuestionRepository) *service.TopicService {
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("[Seed] Redis недоступен, кеш тем не будет сброшен: %v", err)
		return nil
	}
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("[Seed] Не удалось создать CacheRepo: %v", err)
		return nil
	}
	return service.NewTopicService(questionRepo, cacheRepo, cfg.Duel.Topics, cfg.Duel.TopicsRefresh)
}

func readQuestions(path string) ([]service.QuestionInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var parse func(io.Reader) ([]service.QuestionInput, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		parse = service.ParseQuestionsJSON
	case ".xlsx":
		parse = service.ParseQuestionsXLSX
	default:
		return nil, fmt.Errorf("unsupported file type %q, expected .json or .xlsx", filepath.Ext(path))
	}
	return parse(f)
}
