package main

import (
	"fmt"
	"log"
	"os"

	"carevault/internal/api"
	"carevault/internal/audio"
	"carevault/internal/audit"
	"carevault/internal/config"
	"carevault/internal/db"
	"carevault/internal/document"
	"carevault/internal/embedding"
	"carevault/internal/memory"
	"carevault/internal/reasoning"
	redisdb "carevault/internal/redis"
	"carevault/internal/retrieval"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	gormDB, err := db.Init(cfg.Postgres.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	rdb := redisdb.NewClient(cfg)

	// Text, document, and audio memories share the 384-dim collection.
	store, err := memory.NewStorage(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.MemoryCollection, memory.TextVectorSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Qdrant init error: %v\n", err)
		os.Exit(1)
	}

	// Image memories live in a separate 512-dim CLIP collection,
	// enabled only when an image embedding service is configured.
	var imageStore memory.Store
	var imageEmbedder *embedding.ImageEmbedder
	if cfg.Embedding.ImageURL != "" {
		images, err := memory.NewStorage(cfg.Qdrant.URL, cfg.Qdrant.APIKey, cfg.Qdrant.ImageCollection, memory.ImageVectorSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Qdrant image collection init error: %v\n", err)
			os.Exit(1)
		}
		imageStore = images
		imageEmbedder = embedding.NewImageEmbedder(cfg.Embedding.ImageURL)
	} else {
		log.Printf("[Main] Image embedding not configured; image ingestion disabled")
	}

	embedder := embedding.NewTextEmbedder(cfg.Embedding.TextURL, "")
	extractor := document.NewExtractor()

	var transcriber memory.Transcriber
	if cfg.Transcription.URL != "" {
		transcriber = audio.NewTranscriber(cfg.Transcription.URL, cfg.Transcription.APIKey, cfg.Transcription.Model)
	} else {
		log.Printf("[Main] Transcription not configured; audio ingestion disabled")
	}

	var imgEmbed memory.ImageEmbedder
	if imageEmbedder != nil {
		imgEmbed = imageEmbedder
	}
	manager := memory.NewManager(store, imageStore, embedder, imgEmbed, extractor, transcriber)

	var imgQuery retrieval.ImageQueryEmbedder
	if imageEmbedder != nil {
		imgQuery = imageEmbedder
	}
	engine := retrieval.NewEngine(store, imageStore, embedder, imgQuery)

	llm := reasoning.NewLLMClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Model)
	chain := reasoning.NewChain(llm)

	if cfg.Decay.Enabled {
		worker := memory.NewDecayWorker(manager, cfg.Decay.ScheduleHours, cfg.Decay.BatchSize)
		go worker.Start()
	} else {
		log.Printf("[Main] Confidence decay worker disabled in config")
	}

	server := api.NewServer(cfg, gormDB, rdb, manager, engine, chain, audit.NewRecorder(gormDB))
	r := server.SetupRouter()

	addr := cfg.Address()
	fmt.Printf("Starting server on %s\n", addr)
	if err := r.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
