package main

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"guardian-rag/internal/chunker"
	"guardian-rag/internal/embedding"
	"guardian-rag/internal/models"
	"guardian-rag/internal/service"
	"guardian-rag/internal/vectorindex"
	"guardian-rag/pkg/config"
	"guardian-rag/pkg/logger"
	"guardian-rag/pkg/postgres"

	"go.uber.org/zap"
)

// Seeds the vector index from a directory of cleaned policy documents
// (.txt or .md). Files whose content is unchanged since the last run are
// skipped via a content-hash cache.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	ctx := context.Background()

	var index vectorindex.Index
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		index = vectorindex.NewPostgresIndex(db, appLogger)
	case "memory":
		appLogger.Fatal("Seeding an in-memory index is pointless; set STORAGE_BACKEND=postgres")
	}

	chk, err := chunker.New(cfg.Chunking)
	if err != nil {
		appLogger.Fatal("Failed to initialize chunker", zap.Error(err))
	}
	embedder := embedding.NewClient(&cfg.OpenAI, cfg.Embedding, appLogger)
	ingestService := service.NewIngestService(chk, chunker.DefaultCleanConfig(), embedder, index, appLogger)

	seedDir := filepath.Join("cmd", "seed", "policies")
	if len(os.Args) > 1 {
		seedDir = os.Args[1]
	}
	cacheFile := filepath.Join(seedDir, ".seed_cache.json")

	appLogger.Info("Starting index seeding", zap.String("dir", seedDir))
	if err := seedFromDirectory(ctx, seedDir, cacheFile, ingestService, appLogger); err != nil {
		appLogger.Fatal("Failed to seed index", zap.Error(err))
	}
	appLogger.Info("Index seeding completed successfully")
}

// ProcessedFile represents one processed document in the cache
type ProcessedFile struct {
	FilePath    string    `json:"file_path"`
	FileHash    string    `json:"file_hash"`
	ProcessedAt time.Time `json:"processed_at"`
}

// CacheData stores information about processed files
type CacheData struct {
	ProcessedFiles map[string]ProcessedFile `json:"processed_files"` // key: file path
}

func loadCache(cacheFile string) (*CacheData, error) {
	cache := &CacheData{
		ProcessedFiles: make(map[string]ProcessedFile),
	}

	if _, err := os.Stat(cacheFile); os.IsNotExist(err) {
		return cache, nil
	}

	data, err := os.ReadFile(cacheFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return cache, nil
	}

	if err := json.Unmarshal(data, cache); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return cache, nil
}

func saveCache(cacheFile string, cache *CacheData) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if err := os.WriteFile(cacheFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

func hashContent(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}

func seedFromDirectory(
	ctx context.Context,
	seedDir string,
	cacheFile string,
	ingestService *service.IngestService,
	logger *zap.Logger,
) error {
	cache, err := loadCache(cacheFile)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(seedDir)
	if err != nil {
		return fmt.Errorf("failed to read seed directory: %w", err)
	}

	var seeded, skipped int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		path := filepath.Join(seedDir, name)
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		hash := hashContent(content)
		if cached, ok := cache.ProcessedFiles[path]; ok && cached.FileHash == hash {
			logger.Debug("Skipping unchanged file", zap.String("file", name))
			skipped++
			continue
		}

		docID := strings.TrimSuffix(name, ext)
		chunkCount, err := ingestService.Ingest(ctx, models.Document{
			ID:        docID,
			SourceURI: "file://" + path,
			RawText:   string(content),
		})
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}

		cache.ProcessedFiles[path] = ProcessedFile{
			FilePath:    path,
			FileHash:    hash,
			ProcessedAt: time.Now().UTC(),
		}
		logger.Info("Seeded document",
			zap.String("document_id", docID),
			zap.Int("chunks", chunkCount),
		)
		seeded++
	}

	if err := saveCache(cacheFile, cache); err != nil {
		return err
	}

	logger.Info("Seeding summary", zap.Int("seeded", seeded), zap.Int("skipped", skipped))
	return nil
}
